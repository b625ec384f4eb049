package sentinel

import (
	"context"
	"time"

	cancelablefeed "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/cancelablefeed"
	basesentinel "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/sentinel"
	constant "github.com/OpenBridgePlatform/bridge-scheduler/pkg/const"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/budget"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
)

type handler struct{}

func NewSentinel() basesentinel.Scanner {
	return &handler{}
}

func (h *handler) Scan(ctx context.Context, exec chan interface{}) error {
	offset := int32(0)
	limit := constant.DefaultRowLimit
	due := uint32(time.Now().Unix())

	for {
		reminders, err := budget.GetDueReminders(ctx, due, offset, limit)
		if err != nil {
			return err
		}
		if len(reminders) == 0 {
			return nil
		}
		for _, reminder := range reminders {
			cancelablefeed.CancelableFeed(ctx, reminder, exec)
		}
		offset += limit
	}
}

func (h *handler) InitScan(ctx context.Context, exec chan interface{}) error {
	return nil
}

func (h *handler) TriggerScan(ctx context.Context, cond interface{}, exec chan interface{}) error {
	return nil
}

func (h *handler) ObjectID(ent interface{}) string {
	switch reminder := ent.(type) {
	case *types.OrderReminder:
		return reminder.OrderID
	case *types.PersistentReminder:
		return reminder.OrderID
	}
	return ""
}
