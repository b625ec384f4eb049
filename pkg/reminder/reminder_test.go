package reminder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/db"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/budget"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/executor"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/persistent"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
)

type countingDriver struct {
	dispatches int
}

func (d *countingDriver) AddOrUpdateOrder(ctx context.Context, _order *ordertypes.Order, side *order.SideInfo) error {
	return nil
}

func (d *countingDriver) Dispatch(ctx context.Context, orderID string) {
	d.dispatches++
}

func setupDB(t *testing.T) {
	conn, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%v?mode=memory&cache=shared", uuid.NewString())),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.Nil(t, err)
	require.Nil(t, conn.AutoMigrate(&ordertypes.Order{}, &ordertypes.StatusFlow{}, &types.OrderReminder{}))
	db.ReplaceClient(conn)
}

func stuckOrder(t *testing.T) *ordertypes.Order {
	_order := &ordertypes.Order{
		ID:        uuid.NewString(),
		OrderType: ordertypes.OrderTypeWithdraw,
		Status:    ordertypes.OrderStatusFromTransferring,
		FromTransfer: ordertypes.TransferLeg{
			ChainID: "eth-mainnet",
			Symbol:  "usdt",
			Amount:  "100",
		},
	}
	require.Nil(t, order.CreateOrder(context.Background(), _order))
	return _order
}

func dueReminder(t *testing.T, orderID string) *types.OrderReminder {
	due := uint32(time.Now().Unix()) + 86400
	reminders, err := budget.GetDueReminders(context.Background(), due, 0, 100)
	require.Nil(t, err)
	for _, reminder := range reminders {
		if reminder.OrderID == orderID {
			return reminder
		}
	}
	return nil
}

func fire(t *testing.T, reminder *types.OrderReminder, notif chan interface{}) *types.PersistentReminder {
	persistentCh := make(chan interface{}, 1)
	done := make(chan interface{}, 2)

	exec := executor.NewExecutor()
	require.Nil(t, exec.Exec(context.Background(), reminder, persistentCh, notif, done))

	select {
	case ent := <-persistentCh:
		out := ent.(*types.PersistentReminder)
		p := persistent.NewPersistent()
		require.Nil(t, p.Update(context.Background(), out, nil, notif, done))
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("no reminder outcome")
		return nil
	}
}

func TestReminderRegisterIdempotent(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	_order := stuckOrder(t)
	require.Nil(t, Register(ctx, _order))
	require.Nil(t, Register(ctx, _order))

	reminder := dueReminder(t, _order.ID)
	require.NotNil(t, reminder)
	assert.Equal(t, uint32(0), reminder.Attempts)
}

func TestReminderBudgetExhaustion(t *testing.T) {
	setupDB(t)
	config.SetOverride("reminder_retries", "3")
	driver := &countingDriver{}
	order.RegisterDriver(driver)

	ctx := context.Background()
	_order := stuckOrder(t)
	require.Nil(t, Register(ctx, _order))

	notif := make(chan interface{}, 10)

	// The budget allows three re-drives.
	for i := 0; i < 3; i++ {
		reminder := dueReminder(t, _order.ID)
		require.NotNil(t, reminder, "attempt %v", i)
		out := fire(t, reminder, notif)
		assert.Equal(t, types.OutcomeRemind, out.Outcome)
	}
	assert.Equal(t, 3, driver.dispatches)

	// The fourth pass exhausts the budget: the reminder closes itself and
	// raises exactly one alert.
	reminder := dueReminder(t, _order.ID)
	require.NotNil(t, reminder)
	out := fire(t, reminder, notif)
	assert.Equal(t, types.OutcomeExhaust, out.Outcome)
	assert.Len(t, notif, 1)

	assert.Nil(t, dueReminder(t, _order.ID))
	assert.Equal(t, 3, driver.dispatches)
}

func TestReminderSettlesOnTerminalOrder(t *testing.T) {
	setupDB(t)
	driver := &countingDriver{}
	order.RegisterDriver(driver)

	ctx := context.Background()
	_order := stuckOrder(t)
	require.Nil(t, Register(ctx, _order))

	_order.Status = ordertypes.OrderStatusFinish
	require.Nil(t, order.UpdateOrder(ctx, _order, ordertypes.OrderStatusFromTransferring, ""))

	notif := make(chan interface{}, 1)
	reminder := dueReminder(t, _order.ID)
	require.NotNil(t, reminder)
	out := fire(t, reminder, notif)
	assert.Equal(t, types.OutcomeSettle, out.Outcome)
	assert.Len(t, notif, 0)
	assert.Nil(t, dueReminder(t, _order.ID))
}

func TestReminderCancel(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	_order := stuckOrder(t)
	require.Nil(t, Register(ctx, _order))
	require.Nil(t, Cancel(ctx, _order.ID))
	assert.Nil(t, dueReminder(t, _order.ID))
}
