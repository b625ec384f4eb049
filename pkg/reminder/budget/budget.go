package budget

import (
	"context"
	"time"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/db"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
)

// Register opens a retry budget for a fresh order. Idempotent per order;
// a second registration leaves the existing budget untouched.
func Register(ctx context.Context, order *ordertypes.Order) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	exist := int64(0)
	if err := cli.WithContext(ctx).
		Model(&types.OrderReminder{}).
		Where("order_id = ?", order.ID).
		Count(&exist).Error; err != nil {
		return err
	}
	if exist > 0 {
		return nil
	}
	return cli.WithContext(ctx).Create(&types.OrderReminder{
		OrderID:         order.ID,
		RetryFromStatus: order.Status,
		NextDueAt:       uint32(time.Now().Unix()) + config.ReminderInterval(),
	}).Error
}

// Cancel closes the budget without an alert; called when the order settles.
func Cancel(ctx context.Context, orderID string) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	return cli.WithContext(ctx).
		Model(&types.OrderReminder{}).
		Where("order_id = ?", orderID).
		Update("done", true).Error
}

func GetDueReminders(ctx context.Context, due uint32, offset, limit int32) ([]*types.OrderReminder, error) {
	cli, err := db.Client()
	if err != nil {
		return nil, err
	}
	infos := []*types.OrderReminder{}
	if err := cli.WithContext(ctx).
		Where("done = ? and next_due_at <= ?", false, due).
		Order("id asc").
		Offset(int(offset)).
		Limit(int(limit)).
		Find(&infos).Error; err != nil {
		return nil, err
	}
	return infos, nil
}

// ChargeAttempt spends one retry and re-arms the due time. The status the
// retry was issued from is recorded so the next pass can tell whether the
// nudge moved the order at all.
func ChargeAttempt(ctx context.Context, reminder *types.OrderReminder, status ordertypes.OrderStatus) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	return cli.WithContext(ctx).
		Model(&types.OrderReminder{}).
		Where("id = ?", reminder.ID).
		Updates(map[string]interface{}{
			"attempts":          reminder.Attempts + 1,
			"next_due_at":       uint32(time.Now().Unix()) + config.ReminderInterval(),
			"retry_from_status": status,
		}).Error
}

func Settle(ctx context.Context, reminder *types.OrderReminder, alerted bool) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	return cli.WithContext(ctx).
		Model(&types.OrderReminder{}).
		Where("id = ?", reminder.ID).
		Updates(map[string]interface{}{
			"done":    true,
			"alerted": alerted,
		}).Error
}
