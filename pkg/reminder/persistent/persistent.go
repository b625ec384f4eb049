package persistent

import (
	"context"
	"fmt"

	asyncfeed "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/asyncfeed"
	basepersistent "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/persistent"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/budget"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
)

type handler struct{}

func NewPersistent() basepersistent.Persistenter {
	return &handler{}
}

func (p *handler) Update(ctx context.Context, reminder interface{}, retry, notif, done chan interface{}) error {
	_reminder, ok := reminder.(*types.PersistentReminder)
	if !ok {
		return fmt.Errorf("invalid reminder")
	}

	switch _reminder.Outcome {
	case types.OutcomeSettle:
		if err := budget.Settle(ctx, _reminder.OrderReminder, false); err != nil {
			return err
		}
	case types.OutcomeExhaust:
		// Close the budget before alerting so a crash never alerts twice.
		if err := budget.Settle(ctx, _reminder.OrderReminder, true); err != nil {
			return err
		}
		asyncfeed.AsyncFeed(ctx, _reminder, notif)
		return nil
	case types.OutcomeRemind:
		if err := budget.ChargeAttempt(ctx, _reminder.OrderReminder, _reminder.Status); err != nil {
			return err
		}
		driver, err := order.GetDriver()
		if err != nil {
			return err
		}
		driver.Dispatch(ctx, _reminder.OrderID)
	default:
		return fmt.Errorf("invalid outcome %v", _reminder.Outcome)
	}

	asyncfeed.AsyncFeed(ctx, _reminder, done)

	return nil
}
