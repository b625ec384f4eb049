package executor

import (
	"context"

	"github.com/NpoolPlatform/go-service-framework/pkg/action"
	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/watcher"
)

type Executor interface {
	Feed(context.Context, interface{})
	Finalize(context.Context)
}

type Exec interface {
	Exec(ctx context.Context, ent interface{}, persistent, notif, done chan interface{}) error
}

type handler struct {
	feeder     chan interface{}
	persistent chan interface{}
	notif      chan interface{}
	done       chan interface{}
	exec       Exec
	w          *watcher.Watcher
	subsystem  string
}

func NewExecutor(
	ctx context.Context,
	cancel context.CancelFunc,
	persistent, notif, done chan interface{},
	exec Exec,
	subsystem string,
) Executor {
	e := &handler{
		feeder:     make(chan interface{}),
		persistent: persistent,
		notif:      notif,
		done:       done,
		w:          watcher.NewWatcher(),
		exec:       exec,
		subsystem:  subsystem,
	}

	go action.Watch(ctx, cancel, e.run, e.paniced)
	return e
}

func (e *handler) paniced(ctx context.Context) {
	logger.Sugar().Errorw(
		"Paniced",
		"Subsystem", e.subsystem,
	)
	close(e.w.ClosedChan())
}

func (e *handler) handler(ctx context.Context) bool {
	closed := false
	defer func() {
		if err := recover(); err != nil {
			logger.Sugar().Errorw(
				"handler",
				"State", "Recover",
				"Subsystem", e.subsystem,
				"Error", err,
			)
			if !closed {
				close(e.w.ClosedChan())
			}
		}
	}()
	select {
	case ent := <-e.feeder:
		if err := e.exec.Exec(ctx, ent, e.persistent, e.notif, e.done); err != nil {
			logger.Sugar().Errorw(
				"handler",
				"State", "Exec",
				"Subsystem", e.subsystem,
				"Error", err,
			)
		}
		return false
	case <-e.w.CloseChan():
		close(e.w.ClosedChan())
		closed = true
		return true
	}
}

func (e *handler) run(ctx context.Context) {
	for {
		if b := e.handler(ctx); b {
			break
		}
	}
}

func (e *handler) Finalize(ctx context.Context) {
	if e != nil && e.w != nil {
		e.w.Shutdown(ctx)
	}
}

func (e *handler) Feed(ctx context.Context, ent interface{}) {
	select {
	case e.feeder <- ent:
	case <-ctx.Done():
	}
}
