package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Ключи кеша публичных данных.
const (
	cachePrefixCatalog   = "catalog:"
	CacheKeyShopItems    = cachePrefixCatalog + "shop_items"
	CacheKeyPageProducts = cachePrefixCatalog + "page_products"
	CacheKeySiteSettings = "settings:all"

	cacheSweepInterval = 5 * time.Minute
	publicCacheTTL     = 5 * time.Minute
)

// CacheService хранит ответы публичных ручек в памяти процесса.
// Любая инвалидация повышает поколение: значение, загруженное до неё, не сохраняется.
type CacheService struct {
	mu         sync.RWMutex
	items      map[string]cached
	generation uint64
	now        func() time.Time
}

type cached struct {
	value   any
	expires time.Time
}

// NewCacheService создаёт пустой кеш. Просроченные записи вычищает Run.
func NewCacheService() *CacheService {
	return &CacheService{items: make(map[string]cached), now: time.Now}
}

// Get возвращает живое значение по ключу.
func (cs *CacheService) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	it, ok := cs.items[key]
	if !ok || !cs.now().Before(it.expires) {
		return nil, false
	}
	return it.value, true
}

// Set кладёт значение на ttl.
func (cs *CacheService) Set(key string, value any, ttl time.Duration) {
	cs.mu.Lock()
	cs.items[key] = cached{value: value, expires: cs.now().Add(ttl)}
	cs.mu.Unlock()
}

// Delete удаляет ключ.
func (cs *CacheService) Delete(key string) {
	cs.invalidate(func(k string) bool { return k == key })
}

// InvalidateByPrefix удаляет все ключи с префиксом.
func (cs *CacheService) InvalidateByPrefix(prefix string) {
	cs.invalidate(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// InvalidateCatalog сбрасывает публичный каталог после правок администратора.
func (cs *CacheService) InvalidateCatalog() {
	cs.InvalidateByPrefix(cachePrefixCatalog)
}

func (cs *CacheService) invalidate(match func(string) bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.generation++
	for k := range cs.items {
		if match(k) {
			delete(cs.items, k)
		}
	}
}

// Run раз в cacheSweepInterval удаляет просроченные записи, пока не отменён ctx.
func (cs *CacheService) Run(ctx context.Context) {
	t := time.NewTicker(cacheSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cs.sweep()
		}
	}
}

func (cs *CacheService) sweep() {
	now := cs.now()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, it := range cs.items {
		if !now.Before(it.expires) {
			delete(cs.items, k)
		}
	}
}

// GetOrSet отдаёт значение из кеша или вычисляет его через load.
// Если за время load кеш инвалидировали, результат возвращается, но не сохраняется.
func (cs *CacheService) GetOrSet(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (any, error)) (any, error) {
	if v, ok := cs.Get(key); ok {
		return v, nil
	}

	cs.mu.RLock()
	gen := cs.generation
	cs.mu.RUnlock()

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	if cs.generation == gen {
		cs.items[key] = cached{value: v, expires: cs.now().Add(ttl)}
	}
	cs.mu.Unlock()
	return v, nil
}

// cachedLoad типизированная обёртка над GetOrSet.
func cachedLoad[T any](ctx context.Context, cs *CacheService, key string, load func(context.Context) (T, error)) (T, error) {
	v, err := cs.GetOrSet(ctx, key, publicCacheTTL, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
