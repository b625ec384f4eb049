package txwatcher

import (
	"context"
	"sync"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

const subsystem = "txwatcher"

var running sync.Map

// One watcher per class; the fast class ticks more often so small legs
// settle at the pace their lower depth allows.
var watchers = []*classWatcher{
	{subsystem: "txwatcherfrom", class: types.ClassFromTransfer, interval: 30 * time.Second},
	{subsystem: "txwatcherfromfast", class: types.ClassFromTransferFast, interval: 10 * time.Second},
	{subsystem: "txwatcherto", class: types.ClassToTransfer, interval: 30 * time.Second},
	{subsystem: "txwatcherswap", class: types.ClassSwapTransfer, interval: 30 * time.Second},
}

func Initialize(ctx context.Context, cancel context.CancelFunc) {
	if b := config.SupportSubsystem(subsystem); !b {
		return
	}
	logger.Sugar().Infow(
		"Initialize",
		"Subsystem", subsystem,
	)

	for _, w := range watchers {
		w.initialize(ctx, cancel, &running)
	}
}

func Finalize(ctx context.Context) {
	if b := config.SupportSubsystem(subsystem); !b {
		return
	}
	for _, w := range watchers {
		w.finalize(ctx)
	}
}
