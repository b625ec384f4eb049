package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/base"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/budget"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/executor"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/notif"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/pendinglist"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/persistent"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/sentinel"
)

const subsystem = "reminder"

var (
	h       *base.Handler
	running sync.Map
)

// Register opens the durable retry budget for an order.
func Register(ctx context.Context, _order *ordertypes.Order) error {
	return budget.Register(ctx, _order)
}

// Cancel closes an order's budget once it settles.
func Cancel(ctx context.Context, orderID string) error {
	return budget.Cancel(ctx, orderID)
}

func Initialize(ctx context.Context, cancel context.CancelFunc) {
	if b := config.SupportSubsystem(subsystem); !b {
		return
	}
	logger.Sugar().Infow(
		"Initialize",
		"Subsystem", subsystem,
	)

	_h, err := base.NewHandler(
		ctx,
		cancel,
		base.WithSubsystem(subsystem),
		base.WithScanInterval(30*time.Second),
		base.WithScanner(sentinel.NewSentinel()),
		base.WithExec(executor.NewExecutor()),
		base.WithNotify(notif.NewNotif()),
		base.WithPersistenter(persistent.NewPersistent()),
		base.WithRunningMap(&running),
	)
	if err != nil || _h == nil {
		logger.Sugar().Errorw(
			"Initialize",
			"Subsystem", subsystem,
			"Error", err,
		)
		return
	}

	h = _h
	go h.Run(ctx, cancel)

	pendinglist.Initialize(ctx, cancel)
}

func Finalize(ctx context.Context) {
	if b := config.SupportSubsystem(subsystem); !b {
		return
	}
	pendinglist.Finalize(ctx)
	if h != nil {
		h.Finalize(ctx)
	}
}
