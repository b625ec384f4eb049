package txwatcher

import (
	"context"
	"sync"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/base"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/executor"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/notif"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/persistent"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/sentinel"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

type classWatcher struct {
	subsystem string
	class     types.Class
	interval  time.Duration
	h         *base.Handler
}

func (w *classWatcher) initialize(ctx context.Context, cancel context.CancelFunc, running *sync.Map) {
	_h, err := base.NewHandler(
		ctx,
		cancel,
		base.WithSubsystem(w.subsystem),
		base.WithScanInterval(w.interval),
		base.WithScanner(sentinel.NewSentinel(w.class)),
		base.WithExec(executor.NewExecutor()),
		base.WithNotify(notif.NewNotif()),
		base.WithPersistenter(persistent.NewPersistent()),
		base.WithRunningMap(running),
	)
	if err != nil || _h == nil {
		logger.Sugar().Errorw(
			"initialize",
			"Subsystem", w.subsystem,
			"Error", err,
		)
		return
	}

	w.h = _h
	go w.h.Run(ctx, cancel)
}

func (w *classWatcher) finalize(ctx context.Context) {
	if w.h != nil {
		w.h.Finalize(ctx)
	}
}
