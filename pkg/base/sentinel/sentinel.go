package sentinel

import (
	"context"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/action"
	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/watcher"
)

type Scanner interface {
	InitScan(ctx context.Context, exec chan interface{}) error
	Scan(ctx context.Context, exec chan interface{}) error
	TriggerScan(ctx context.Context, cond interface{}, exec chan interface{}) error
	ObjectID(ent interface{}) string
}

type Sentinel interface {
	Exec() chan interface{}
	Trigger(cond interface{})
	Finalize(ctx context.Context)
}

type handler struct {
	w            *watcher.Watcher
	exec         chan interface{}
	trigger      chan interface{}
	scanner      Scanner
	scanInterval time.Duration
	subsystem    string
}

func NewSentinel(
	ctx context.Context,
	cancel context.CancelFunc,
	scanner Scanner,
	scanInterval time.Duration,
	subsystem string,
) Sentinel {
	h := &handler{
		w:            watcher.NewWatcher(),
		exec:         make(chan interface{}),
		trigger:      make(chan interface{}),
		scanner:      scanner,
		scanInterval: scanInterval,
		subsystem:    subsystem,
	}
	go action.Watch(ctx, cancel, h.run, h.paniced)
	return h
}

func (h *handler) paniced(ctx context.Context) {
	logger.Sugar().Errorw(
		"Paniced",
		"Subsystem", h.subsystem,
	)
	close(h.w.ClosedChan())
}

func (h *handler) Exec() chan interface{} {
	return h.exec
}

func (h *handler) Trigger(cond interface{}) {
	go func() {
		h.trigger <- cond
	}()
}

func (h *handler) handler(ctx context.Context) bool {
	select {
	case <-time.After(h.scanInterval):
		if err := h.scanner.Scan(ctx, h.exec); err != nil {
			logger.Sugar().Infow(
				"handler",
				"State", "Scan",
				"Subsystem", h.subsystem,
				"Error", err,
			)
		}
		return false
	case cond := <-h.trigger:
		if err := h.scanner.TriggerScan(ctx, cond, h.exec); err != nil {
			logger.Sugar().Infow(
				"handler",
				"State", "TriggerScan",
				"Subsystem", h.subsystem,
				"Error", err,
			)
		}
		return false
	case <-ctx.Done():
		logger.Sugar().Infow(
			"handler",
			"State", "Done",
			"Subsystem", h.subsystem,
			"Error", ctx.Err(),
		)
		close(h.w.ClosedChan())
		return true
	case <-h.w.CloseChan():
		close(h.w.ClosedChan())
		return true
	}
}

func (h *handler) run(ctx context.Context) {
	if err := h.scanner.InitScan(ctx, h.exec); err != nil {
		logger.Sugar().Errorw(
			"run",
			"State", "InitScan",
			"Subsystem", h.subsystem,
			"Error", err,
		)
	}
	for {
		if b := h.handler(ctx); b {
			break
		}
	}
}

func (h *handler) Finalize(ctx context.Context) {
	if h.w != nil {
		h.w.Shutdown(ctx)
	}
	close(h.exec)
}
