package goroutine

import (
	"context"
	"runtime/debug"
	"sync"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler запускает фоновые задачи с перехватом panic и позволяет дождаться их завершения.
type RecoveryHandler struct {
	logger Logger
	wg     sync.WaitGroup
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer rh.recover()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	rh.SafeGo(func() { fn(ctx) })
}

// Wait блокируется, пока не завершатся все запущенные задачи.
func (rh *RecoveryHandler) Wait() {
	rh.wg.Wait()
}

func (rh *RecoveryHandler) recover() {
	if r := recover(); r != nil && rh.logger != nil {
		rh.logger.Errorf("Panic in goroutine: %v\nStack trace:\n%s", r, debug.Stack())
	}
}
