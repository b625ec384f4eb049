package pendinglist

import (
	"context"
	"sync"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/action"
	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/watcher"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
)

// In-memory replay list for events that may have been lost in flight. Not
// durable; the durable reminder registry covers restarts.

const scanInterval = 10 * time.Second

type entry struct {
	orderID         string
	retryFromStatus ordertypes.OrderStatus
	addedAt         time.Time
}

var (
	pending sync.Map
	w       *watcher.Watcher
)

// Add parks an order for replay, optionally with the status the lost event
// would have asserted. Idempotent; a second add for the same order keeps
// the first entry.
func Add(orderID string, retryFromStatus ordertypes.OrderStatus) {
	pending.LoadOrStore(orderID, &entry{
		orderID:         orderID,
		retryFromStatus: retryFromStatus,
		addedAt:         time.Now(),
	})
}

func Remove(orderID string) {
	pending.Delete(orderID)
}

func replay(ctx context.Context, ent *entry) {
	if time.Since(ent.addedAt) < scanInterval {
		// Too fresh; the failed delivery may still be in flight.
		return
	}
	_order, err := order.GetOrder(ctx, ent.orderID)
	if err != nil {
		logger.Sugar().Warnw(
			"replay",
			"OrderID", ent.orderID,
			"Error", err,
		)
		return
	}
	if _order == nil {
		logger.Sugar().Errorw(
			"replay",
			"OrderID", ent.orderID,
			"Error", "order not found, discarding entry",
		)
		pending.Delete(ent.orderID)
		return
	}
	if _order.Status.Terminal() {
		pending.Delete(ent.orderID)
		return
	}
	driver, err := order.GetDriver()
	if err != nil {
		logger.Sugar().Warnw(
			"replay",
			"OrderID", ent.orderID,
			"Error", err,
		)
		return
	}
	if ent.retryFromStatus != "" &&
		ent.retryFromStatus != _order.Status &&
		ordertypes.LegalNext(_order.Status, ent.retryFromStatus) {
		// Replay the transition the lost event would have asserted.
		_order.Status = ent.retryFromStatus
		if err := driver.AddOrUpdateOrder(ctx, _order, nil); err != nil {
			logger.Sugar().Warnw(
				"replay",
				"OrderID", ent.orderID,
				"RetryFromStatus", ent.retryFromStatus,
				"Error", err,
			)
			return
		}
	} else {
		driver.Dispatch(ctx, ent.orderID)
	}
	// One shot; anything still stuck is the reminder registry's job.
	pending.Delete(ent.orderID)
}

func scan(ctx context.Context) {
	pending.Range(func(key, value interface{}) bool {
		replay(ctx, value.(*entry))
		return true
	})
}

func run(ctx context.Context) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			scan(ctx)
		case <-ctx.Done():
			close(w.ClosedChan())
			return
		case <-w.CloseChan():
			close(w.ClosedChan())
			return
		}
	}
}

func paniced(ctx context.Context) {
	logger.Sugar().Errorw(
		"Paniced",
		"Subsystem", "pendinglist",
	)
	close(w.ClosedChan())
}

func Initialize(ctx context.Context, cancel context.CancelFunc) {
	w = watcher.NewWatcher()
	go action.Watch(ctx, cancel, run, paniced)
}

func Finalize(ctx context.Context) {
	if w != nil {
		w.Shutdown(ctx)
	}
}
