package order

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/db"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
)

func setupDB(t *testing.T) {
	conn, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%v?mode=memory&cache=shared", uuid.NewString())),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.Nil(t, err)
	require.Nil(t, conn.AutoMigrate(&types.Order{}, &types.StatusFlow{}))
	db.ReplaceClient(conn)
}

func newWithdrawOrder() *types.Order {
	return &types.Order{
		ID:        uuid.NewString(),
		OrderType: types.OrderTypeWithdraw,
		Status:    types.OrderStatusCreated,
		FromTransfer: types.TransferLeg{
			ChainID: "eth-mainnet",
			Symbol:  "usdt",
			Amount:  "100",
			Status:  types.TransferStatusCreated,
		},
		ToTransfer: types.TransferLeg{
			ChainID:   "eth-mainnet",
			Symbol:    "usdt",
			Amount:    "100",
			ToAddress: "0xdest",
			Status:    types.TransferStatusCreated,
		},
	}
}

func TestCreateGetOrder(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	_order := newWithdrawOrder()
	require.Nil(t, CreateOrder(ctx, _order))
	assert.NotZero(t, _order.CreateTime)

	stored, err := GetOrder(ctx, _order.ID)
	require.Nil(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, _order.ID, stored.ID)
	assert.Equal(t, types.OrderStatusCreated, stored.Status)
	assert.Equal(t, "usdt", stored.FromTransfer.Symbol)

	missing, err := GetOrder(ctx, uuid.NewString())
	require.Nil(t, err)
	assert.Nil(t, missing)
}

func TestUpdateOrderStatusFlow(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	_order := newWithdrawOrder()
	require.Nil(t, CreateOrder(ctx, _order))

	from := _order.Status
	_order.Status = types.OrderStatusFromStartTransfer
	require.Nil(t, UpdateOrder(ctx, _order, from, "advance"))

	flows, err := GetStatusFlows(ctx, _order.ID)
	require.Nil(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, types.OrderStatusCreated, flows[0].FromStatus)
	assert.Equal(t, types.OrderStatusFromStartTransfer, flows[0].ToStatus)
	assert.Equal(t, "advance", flows[0].Note)

	// Same-status writes must not grow the audit trail.
	require.Nil(t, UpdateOrder(ctx, _order, _order.Status, ""))
	flows, err = GetStatusFlows(ctx, _order.ID)
	require.Nil(t, err)
	assert.Len(t, flows, 1)
}

func TestUpdateOrderTxIDReassign(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	_order := newWithdrawOrder()
	_order.FromTransfer.TxID = "0xaaa"
	_order.FromTransfer.Status = types.TransferStatusTransferring
	require.Nil(t, CreateOrder(ctx, _order))

	_order.FromTransfer.TxID = "0xbbb"
	err := UpdateOrder(ctx, _order, _order.Status, "")
	assert.NotNil(t, err)

	// Once the previous attempt resolved, the next attempt may assign a
	// fresh txid.
	_order.FromTransfer.TxID = "0xaaa"
	_order.FromTransfer.Status = types.TransferStatusFailed
	require.Nil(t, UpdateOrder(ctx, _order, _order.Status, ""))

	_order.FromTransfer.TxID = "0xbbb"
	require.Nil(t, UpdateOrder(ctx, _order, _order.Status, ""))
}

func TestGetOrdersByStatus(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_order := newWithdrawOrder()
		require.Nil(t, CreateOrder(ctx, _order))
	}
	pending := newWithdrawOrder()
	pending.Status = types.OrderStatusPending
	require.Nil(t, CreateOrder(ctx, pending))

	created, err := GetOrdersByStatus(ctx, types.OrderStatusCreated, 0, 100)
	require.Nil(t, err)
	assert.Len(t, created, 3)

	pendings, err := GetOrdersByStatus(ctx, types.OrderStatusPending, 0, 100)
	require.Nil(t, err)
	assert.Len(t, pendings, 1)
}

func TestGetStaleOrders(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	stale := newWithdrawOrder()
	require.Nil(t, CreateOrder(ctx, stale))

	finished := newWithdrawOrder()
	finished.Status = types.OrderStatusFinish
	require.Nil(t, CreateOrder(ctx, finished))

	infos, err := GetStaleOrders(ctx, stale.LastModifyTime+10, 0, 100)
	require.Nil(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, stale.ID, infos[0].ID)
}
