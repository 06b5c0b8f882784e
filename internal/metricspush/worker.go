package metricspush

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = time.Minute

// Worker refreshes the inventory and pushes it on a fixed interval.
type Worker struct {
	inventory *Inventory
	pusher    Pusher
	interval  time.Duration
	log       *zap.Logger

	cancel  context.CancelFunc
	doneCh  chan struct{}
	failing atomic.Bool
}

func NewWorker(inventory *Inventory, pusher Pusher, interval time.Duration, log *zap.Logger) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{
		inventory: inventory,
		pusher:    pusher,
		interval:  interval,
		log:       log.Named("metricspush"),
	}
}

func (w *Worker) Start() {
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.doneCh = make(chan struct{})

	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.RunOnce(ctx)
		for {
			select {
			case <-ticker.C:
				w.RunOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	select {
	case <-w.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	if closer, ok := w.pusher.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// RunOnce refreshes and pushes a single snapshot. Only the first failure of
// a streak is logged.
func (w *Worker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()

	err := w.inventory.Refresh(ctx)
	if err == nil {
		err = w.pusher.Push(ctx, w.inventory.Gatherer())
	}
	if err != nil {
		if w.failing.CompareAndSwap(false, true) {
			w.log.Warn("inventory push failed", zap.Error(err))
		}
		return err
	}
	if w.failing.CompareAndSwap(true, false) {
		w.log.Info("inventory push recovered")
	}
	return nil
}
