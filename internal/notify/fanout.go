package notify

import (
	"context"

	"github.com/sratov/TimeBankingBot/internal/goroutine"
)

// Fanout рассылает события во все publisher'ы в фоне.
type Fanout struct {
	publishers []Publisher
	runner     *goroutine.RecoveryHandler
}

// NewFanout создаёт рассыльщик. Паника в одном из publisher'ов не затрагивает остальные.
func NewFanout(runner *goroutine.RecoveryHandler, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, runner: runner}
}

// Publish не блокирует вызывающего. Отмена контекста запроса не прерывает доставку.
func (f *Fanout) Publish(ctx context.Context, events ...Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, p := range f.publishers {
		p := p
		f.runner.SafeGo(func() { p.Publish(ctx, events...) })
	}
}
