package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
)

const maxSettingValueLength = 4000

var settingKeyRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// SettingsRepository хранилище настроек сайта.
type SettingsRepository interface {
	List(ctx context.Context) ([]models.SiteSetting, error)
	Upsert(ctx context.Context, key, value string) (*models.SiteSetting, error)
}

// SettingsService настройки сайта (ссылка на брошюру и т.п.).
type SettingsService struct {
	repo  SettingsRepository
	cache *CacheService
}

func NewSettingsService(repo SettingsRepository, cache *CacheService) *SettingsService {
	if cache == nil {
		cache = NewCacheService()
	}
	return &SettingsService{repo: repo, cache: cache}
}

// All возвращает настройки как словарь ключ-значение.
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	all, err := cachedLoad(ctx, s.cache, CacheKeySiteSettings, func(ctx context.Context) (map[string]string, error) {
		settings, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]string, len(settings))
		for _, st := range settings {
			out[st.Key] = st.Value
		}
		return out, nil
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return all, nil
}

// Set сохраняет значение настройки.
func (s *SettingsService) Set(ctx context.Context, key, value string) (*models.SiteSetting, error) {
	key = strings.TrimSpace(key)
	if !settingKeyRegex.MatchString(key) {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный ключ настройки")
	}
	value = strings.TrimSpace(value)
	if err := validation.ValidateOptional("значение", value, maxSettingValueLength); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if strings.HasSuffix(key, "_url") {
		if err := validation.ValidateExternalLink(value); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	setting, err := s.repo.Upsert(ctx, key, value)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.cache.Delete(CacheKeySiteSettings)
	return setting, nil
}
