package executor

import (
	"context"

	logger "github.com/NpoolPlatform/go-service-framework/pkg/logger"

	asyncfeed "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/asyncfeed"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
)

type reminderHandler struct {
	*types.OrderReminder
	persistent chan interface{}
	notif      chan interface{}
	done       chan interface{}
	outcome    types.Outcome
	status     ordertypes.OrderStatus
}

//nolint:gocritic
func (h *reminderHandler) final(ctx context.Context, err *error) {
	if *err != nil {
		logger.Sugar().Errorw(
			"final",
			"OrderID", h.OrderID,
			"Attempts", h.Attempts,
			"Outcome", h.outcome,
			"Error", *err,
		)
	}

	persistentReminder := &types.PersistentReminder{
		OrderReminder: h.OrderReminder,
		Outcome:       h.outcome,
		Status:        h.status,
		Error:         *err,
	}
	if *err != nil {
		asyncfeed.AsyncFeed(ctx, persistentReminder, h.notif)
		asyncfeed.AsyncFeed(ctx, persistentReminder, h.done)
		return
	}
	asyncfeed.AsyncFeed(ctx, persistentReminder, h.persistent)
}

//nolint:gocritic
func (h *reminderHandler) exec(ctx context.Context) error {
	h.outcome = types.OutcomeSettle
	var err error

	defer h.final(ctx, &err)

	_order, err := order.GetOrder(ctx, h.OrderID)
	if err != nil {
		return err
	}
	if _order == nil || _order.Status.Terminal() {
		return nil
	}

	h.status = _order.Status
	if h.Attempts >= config.ReminderRetries() {
		h.outcome = types.OutcomeExhaust
		return nil
	}
	h.outcome = types.OutcomeRemind
	return nil
}
