package actor

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/NpoolPlatform/go-service-framework/pkg/action"
	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/watcher"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/pendinglist"
)

const (
	subsystem  = "orderactor"
	shardCount = 16
	shardDepth = 64
)

// event is one unit of work for an order's shard loop. order is nil for a
// plain re-drive; err is nil for fire-and-forget delivery.
type event struct {
	orderID string
	order   *ordertypes.Order
	side    *order.SideInfo
	err     chan error
}

// Actor serializes all mutations of one order onto one shard loop. Orders
// on different shards proceed in parallel; orders on the same shard keep
// per-order FIFO because a shard is a single goroutine.
type Actor struct {
	shards   []chan *event
	watchers []*watcher.Watcher
}

var a *Actor

func (a *Actor) shard(orderID string) chan *event {
	f := fnv.New32a()
	_, _ = f.Write([]byte(orderID))
	return a.shards[f.Sum32()%shardCount]
}

func (a *Actor) process(ctx context.Context, ev *event) error {
	_order := ev.order
	if _order != nil {
		stored, err := order.GetOrder(ctx, _order.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("invalid order %v", _order.ID)
		}
		if stored.Status.Terminal() {
			// Late callback on a settled order; idempotent no-op.
			return nil
		}
		if _order.Status != stored.Status && !ordertypes.LegalNext(stored.Status, _order.Status) {
			return fmt.Errorf(
				"illegal transition %v -> %v for order %v",
				stored.Status,
				_order.Status,
				_order.ID,
			)
		}
		note := ""
		if ev.side != nil {
			note = ev.side.Note
		}
		if err := order.UpdateOrder(ctx, _order, stored.Status, note); err != nil {
			return err
		}
		if ev.side != nil && ev.side.SuppressForward {
			return nil
		}
	} else {
		var err error
		_order, err = order.GetOrder(ctx, ev.orderID)
		if err != nil {
			return err
		}
		if _order == nil {
			return fmt.Errorf("invalid order %v", ev.orderID)
		}
	}

	h := &orderHandler{Order: _order}
	return h.advance(ctx)
}

func (a *Actor) handleEvent(ctx context.Context, ev *event) {
	err := a.process(ctx, ev)
	if err != nil {
		logger.Sugar().Errorw(
			"handleEvent",
			"OrderID", ev.orderID,
			"Error", err,
		)
	}
	if ev.err != nil {
		ev.err <- err
		return
	}
	if err != nil {
		// Nobody waits on a fire-and-forget event; park it for replay.
		pendinglist.Add(ev.orderID, "")
	}
}

func (a *Actor) shardRun(shard chan *event, w *watcher.Watcher) func(ctx context.Context) {
	return func(ctx context.Context) {
		for {
			select {
			case ev := <-shard:
				a.handleEvent(ctx, ev)
			case <-ctx.Done():
				close(w.ClosedChan())
				return
			case <-w.CloseChan():
				close(w.ClosedChan())
				return
			}
		}
	}
}

func (a *Actor) shardPaniced(w *watcher.Watcher) func(ctx context.Context) {
	return func(ctx context.Context) {
		logger.Sugar().Errorw(
			"Paniced",
			"Subsystem", subsystem,
		)
		close(w.ClosedChan())
	}
}

func (a *Actor) deliver(ctx context.Context, ev *event) error {
	select {
	case a.shard(ev.orderID) <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddOrUpdateOrder routes a mutation through the owning shard and waits for
// the write to land. Implements order.Driver.
func (a *Actor) AddOrUpdateOrder(ctx context.Context, _order *ordertypes.Order, side *order.SideInfo) error {
	ev := &event{
		orderID: _order.ID,
		order:   _order,
		side:    side,
		err:     make(chan error, 1),
	}
	if err := a.deliver(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-ev.err:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch re-drives an order from its persisted status. Fire and forget; a
// failed delivery is parked for the replay list instead of getting lost.
func (a *Actor) Dispatch(ctx context.Context, orderID string) {
	if err := a.deliver(ctx, &event{orderID: orderID}); err != nil {
		logger.Sugar().Warnw(
			"Dispatch",
			"OrderID", orderID,
			"Error", err,
		)
		pendinglist.Add(orderID, "")
	}
}

func Initialize(ctx context.Context, cancel context.CancelFunc) {
	if b := config.SupportSubsystem(subsystem); !b {
		return
	}
	logger.Sugar().Infow(
		"Initialize",
		"Subsystem", subsystem,
	)

	a = &Actor{}
	for i := 0; i < shardCount; i++ {
		shard := make(chan *event, shardDepth)
		w := watcher.NewWatcher()
		a.shards = append(a.shards, shard)
		a.watchers = append(a.watchers, w)
		go action.Watch(ctx, cancel, a.shardRun(shard, w), a.shardPaniced(w))
	}
	order.RegisterDriver(a)
}

func Finalize(ctx context.Context) {
	if b := config.SupportSubsystem(subsystem); !b {
		return
	}
	if a == nil {
		return
	}
	for _, w := range a.watchers {
		w.Shutdown(ctx)
	}
}
