package goroutine

import (
	"context"
	"runtime/debug"
	"time"
)

// Logger куда уходят перехваченные паники.
type Logger interface {
	Errorf(format string, args ...any)
}

// LoggerFunc позволяет передать обычную функцию как Logger.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Errorf(format string, args ...any) { f(format, args...) }

// RecoveryHandler запускает фоновые задачи так, чтобы паника в них не роняла процесс.
type RecoveryHandler struct {
	log Logger
}

func NewRecoveryHandler(log Logger) *RecoveryHandler {
	return &RecoveryHandler{log: log}
}

// SafeGo запускает fn в отдельной горутине.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go rh.guard("goroutine", fn)
}

// SafeGoWithContext то же, что SafeGo, для функций с контекстом.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go rh.guard("goroutine", func() { fn(ctx) })
}

// Every вызывает fn сразу и затем раз в interval до отмены ctx.
// Паника в одном вызове не прерывает расписание.
func (rh *RecoveryHandler) Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			rh.guard("periodic task", func() { fn(ctx) })
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

func (rh *RecoveryHandler) guard(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rh.log.Errorf("panic in %s: %v\n%s", where, r, debug.Stack())
		}
	}()
	fn()
}
