package actor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/NpoolPlatform/go-service-framework/pkg/watcher"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/chain"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/currency"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/custodial"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/db"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/limiter"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/message"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/notif"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	remindertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/pendingset"
	txpersistent "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/persistent"
	txtypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

type fakeChain struct {
	chain.Client
	txID  string
	sends int
}

func (c *fakeChain) SendRawTransaction(ctx context.Context, chainID, rawTx string) (string, error) {
	c.sends++
	return c.txID, nil
}

type fakeCustodial struct {
	withdraws   int
	withdrawErr error
	result      *custodial.WithdrawResult
}

func (c *fakeCustodial) Withdraw(ctx context.Context, requestID, coin, address, amount, memo string) error {
	c.withdraws++
	return c.withdrawErr
}

func (c *fakeCustodial) PollWithdrawStatus(ctx context.Context, requestID string) (*custodial.WithdrawResult, error) {
	return c.result, nil
}

// fakeScripter reproduces the limiter's check-and-deduct semantics in
// process. Acquire carries amount, cap and expiry; reverse only the amount.
type fakeScripter struct {
	mu       sync.Mutex
	spent    decimal.Decimal
	acquires int
	reverses int
}

func (s *fakeScripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, err := decimal.NewFromString(args[0].(string))
	if err != nil {
		return redis.NewCmdResult(nil, err)
	}
	if len(args) == 3 {
		s.acquires++
		cap, err := decimal.NewFromString(args[1].(string))
		if err != nil {
			return redis.NewCmdResult(nil, err)
		}
		if s.spent.Add(amount).Cmp(cap) > 0 {
			return redis.NewCmdResult(int64(0), nil)
		}
		s.spent = s.spent.Add(amount)
		return redis.NewCmdResult(int64(1), nil)
	}
	s.reverses++
	if amount.Cmp(s.spent) > 0 {
		amount = s.spent
	}
	s.spent = s.spent.Sub(amount)
	return redis.NewCmdResult(int64(1), nil)
}

func (s *fakeScripter) Get(ctx context.Context, key string) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spent.Cmp(decimal.NewFromInt(0)) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(s.spent.String(), nil)
}

type notifRecorder struct {
	mu   sync.Mutex
	mids []string
}

func (r *notifRecorder) publish(mid string, req interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mids = append(r.mids, mid)
	return nil
}

func (r *notifRecorder) count(mid string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.mids {
		if m == mid {
			n++
		}
	}
	return n
}

func setupDB(t *testing.T) {
	conn, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%v?mode=memory&cache=shared", uuid.NewString())),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.Nil(t, err)
	require.Nil(t, conn.AutoMigrate(
		&ordertypes.Order{},
		&ordertypes.StatusFlow{},
		&txtypes.PendingTx{},
		&remindertypes.OrderReminder{},
	))
	db.ReplaceClient(conn)
}

type fixture struct {
	chain     *fakeChain
	custodial *fakeCustodial
	scripter  *fakeScripter
	notifs    *notifRecorder
}

func setup(t *testing.T) *fixture {
	setupDB(t)

	f := &fixture{
		chain: &fakeChain{txID: "0xsrc-tx"},
		custodial: &fakeCustodial{
			result: &custodial.WithdrawResult{State: custodial.WithdrawStateSuccess},
		},
		scripter: &fakeScripter{},
		notifs:   &notifRecorder{},
	}
	chain.SetClient(f.chain)
	custodial.SetClient(f.custodial)
	limiter.SetScripter(f.scripter)
	notif.SetPublishFunc(f.notifs.publish)
	currency.SetPriceFunc(func(ctx context.Context, symbol string) (float64, error) {
		return 1.0, nil
	})

	config.SetOverride("usdt_daily_withdraw_limit", "1000")
	config.SetOverride("usdt_withdraw_fee_rate", "0.01")

	ctx, cancel := context.WithCancel(context.Background())
	a = &Actor{}
	for i := 0; i < shardCount; i++ {
		shard := make(chan *event, shardDepth)
		w := watcher.NewWatcher()
		a.shards = append(a.shards, shard)
		a.watchers = append(a.watchers, w)
		go a.shardRun(shard, w)(ctx)
	}
	order.RegisterDriver(a)

	t.Cleanup(func() {
		cancel()
		notif.SetPublishFunc(nil)
		currency.SetPriceFunc(nil)
	})
	return f
}

func withdrawOrder(amount string) *ordertypes.Order {
	_order := &ordertypes.Order{
		OrderType: ordertypes.OrderTypeWithdraw,
		FromTransfer: ordertypes.TransferLeg{
			ChainID:     "eth-mainnet",
			Symbol:      "usdt",
			Amount:      amount,
			FromAddress: "0xuser",
		},
		ToTransfer: ordertypes.TransferLeg{
			ChainID:   "tron-mainnet",
			Symbol:    "usdt",
			Amount:    amount,
			ToAddress: "TDestination",
		},
	}
	_order.SetExtension(ordertypes.ExtKeyRawTransaction, "0xrawsrc")
	return _order
}

// barrier waits for everything queued ahead of it on the order's shard.
func barrier(t *testing.T, ctx context.Context, orderID string) {
	stored, err := order.GetOrder(ctx, orderID)
	require.Nil(t, err)
	require.NotNil(t, stored)
	require.Nil(t, a.AddOrUpdateOrder(ctx, stored, &order.SideInfo{SuppressForward: true}))
}

func resolveLeg(t *testing.T, ctx context.Context, _order *ordertypes.Order, class txtypes.Class, outcome txtypes.Outcome, mutate func(*txtypes.PersistentTx)) {
	pendings, err := pendingset.GetPendingTxs(ctx, class, 0, 100)
	require.Nil(t, err)

	var pending *txtypes.PendingTx
	for _, p := range pendings {
		if p.OrderID == _order.ID {
			pending = p
		}
	}
	require.NotNil(t, pending)

	tx := &txtypes.PersistentTx{
		TickTx: &txtypes.TickTx{
			PendingTx:   pending,
			ChainStatus: &chain.ChainStatus{BestHeight: 500},
			Spec:        config.GetConfirmSpec(pending.Symbol),
		},
		Outcome: outcome,
	}
	if mutate != nil {
		mutate(tx)
	}

	done := make(chan interface{}, 1)
	require.Nil(t, txpersistent.NewPersistent().Update(ctx, tx, nil, nil, done))
}

func TestWithdrawLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_order := withdrawOrder("100")
	require.Nil(t, CreateOrder(ctx, _order))
	assert.Equal(t, 1, f.scripter.acquires)

	stored, err := order.GetOrder(ctx, _order.ID)
	require.Nil(t, err)
	assert.Equal(t, ordertypes.OrderStatusFromTransferring, stored.Status)
	assert.Equal(t, "0xsrc-tx", stored.FromTransfer.TxID)
	assert.Equal(t, ordertypes.TransferStatusTransferring, stored.FromTransfer.Status)

	// Redundant re-drives while the watcher owns the leg must not move the
	// order or duplicate its pending entry.
	for i := 0; i < 20; i++ {
		a.Dispatch(ctx, _order.ID)
	}
	barrier(t, ctx, _order.ID)
	pendings, err := pendingset.GetPendingTxs(ctx, txtypes.ClassFromTransfer, 0, 100)
	require.Nil(t, err)
	assert.Equal(t, 1, len(pendings))
	stored, err = order.GetOrder(ctx, _order.ID)
	require.Nil(t, err)
	assert.Equal(t, ordertypes.OrderStatusFromTransferring, stored.Status)

	// Source confirmation hands the order to the payout path.
	resolveLeg(t, ctx, _order, txtypes.ClassFromTransfer, txtypes.OutcomeConfirmed, func(tx *txtypes.PersistentTx) {
		tx.FromAddress = "0xuser"
		tx.ToAddress = "0xbridge"
	})

	stored, err = order.GetOrder(ctx, _order.ID)
	require.Nil(t, err)
	assert.Equal(t, ordertypes.OrderStatusToTransferring, stored.Status)
	assert.Equal(t, ordertypes.TransferStatusConfirmed, stored.FromTransfer.Status)
	assert.Equal(t, _order.ID, stored.ThirdPartyOrderID)
	assert.Equal(t, 1, f.custodial.withdraws)
	require.Equal(t, 1, len(stored.ToTransfer.FeeInfos))
	assert.Equal(t, "1", stored.ToTransfer.FeeInfos[0].Amount)
	assert.Equal(t, "99", stored.ToTransfer.Amount)
	assert.Equal(t, "100", stored.AmountUsd)

	// Destination confirmation settles the order.
	resolveLeg(t, ctx, _order, txtypes.ClassToTransfer, txtypes.OutcomeConfirmed, func(tx *txtypes.PersistentTx) {
		tx.ChainTxID = "0xdst-tx"
		tx.Fee = "0.5"
	})

	stored, err = order.GetOrder(ctx, _order.ID)
	require.Nil(t, err)
	assert.Equal(t, ordertypes.OrderStatusFinish, stored.Status)
	assert.Equal(t, ordertypes.TransferStatusConfirmed, stored.ToTransfer.Status)
	assert.Equal(t, "0xdst-tx", stored.ToTransfer.TxID)

	// Success never credits the allowance back.
	assert.Equal(t, 0, f.scripter.reverses)
	remaining, err := limiter.GetRemaining(ctx, "usdt")
	require.Nil(t, err)
	assert.Equal(t, "900", remaining.String())

	cli, err := db.Client()
	require.Nil(t, err)
	reminder := &remindertypes.OrderReminder{}
	require.Nil(t, cli.Where("order_id = ?", _order.ID).First(reminder).Error)
	assert.True(t, reminder.Done)
	assert.False(t, reminder.Alerted)

	assert.GreaterOrEqual(t, f.notifs.count(message.MsgOrderStatusNotif), 1)

	// The audit trail is one unbroken chain of legal transitions.
	flows, err := order.GetStatusFlows(ctx, _order.ID)
	require.Nil(t, err)
	require.NotEmpty(t, flows)
	assert.Equal(t, ordertypes.OrderStatusCreated, flows[0].FromStatus)
	assert.Equal(t, ordertypes.OrderStatusFinish, flows[len(flows)-1].ToStatus)
	for i, flow := range flows {
		assert.True(t, ordertypes.LegalNext(flow.FromStatus, flow.ToStatus), "flow %v", flow)
		if i > 0 {
			assert.Equal(t, flows[i-1].ToStatus, flow.FromStatus)
		}
	}
}

func TestWithdrawSourceFailed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_order := withdrawOrder("100")
	require.Nil(t, CreateOrder(ctx, _order))

	resolveLeg(t, ctx, _order, txtypes.ClassFromTransfer, txtypes.OutcomeFailed, func(tx *txtypes.PersistentTx) {
		tx.Note = "out of gas"
	})

	stored, err := order.GetOrder(ctx, _order.ID)
	require.Nil(t, err)
	assert.Equal(t, ordertypes.OrderStatusFailed, stored.Status)
	assert.Equal(t, "out of gas", stored.Extension(ordertypes.ExtKeyErrorNote))
	assert.Equal(t, "true", stored.Extension(ordertypes.ExtKeyLimitReversed))
	assert.Equal(t, 0, f.custodial.withdraws)

	// The reservation is credited back exactly once.
	assert.Equal(t, 1, f.scripter.reverses)
	remaining, err := limiter.GetRemaining(ctx, "usdt")
	require.Nil(t, err)
	assert.Equal(t, "1000", remaining.String())

	// Replaying the terminal settlement must not pay the credit twice.
	h := &orderHandler{Order: stored}
	_, err = h.step(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, f.scripter.reverses)

	cli, err := db.Client()
	require.Nil(t, err)
	reminder := &remindertypes.OrderReminder{}
	require.Nil(t, cli.Where("order_id = ?", _order.ID).First(reminder).Error)
	assert.True(t, reminder.Done)
}

func TestCreateOrderValidation(t *testing.T) {
	setup(t)
	ctx := context.Background()

	_order := withdrawOrder("100")
	_order.ToTransfer.ToAddress = ""
	err := CreateOrder(ctx, _order)
	require.NotNil(t, err)
	assert.IsType(t, &ValidationError{}, err)

	_order = withdrawOrder("0")
	err = CreateOrder(ctx, _order)
	require.NotNil(t, err)
	assert.IsType(t, &ValidationError{}, err)

	_order = withdrawOrder("100")
	_order.OrderType = ordertypes.OrderTypeDeposit
	err = CreateOrder(ctx, _order)
	require.NotNil(t, err)
	assert.IsType(t, &ValidationError{}, err)

	_order = withdrawOrder("100")
	_order.OrderType = "Teleport"
	err = CreateOrder(ctx, _order)
	require.NotNil(t, err)
	assert.IsType(t, &ValidationError{}, err)
}

func TestCreateOrderLimitExhausted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.Nil(t, CreateOrder(ctx, withdrawOrder("100")))

	_order := withdrawOrder("950")
	err := CreateOrder(ctx, _order)
	assert.Equal(t, ErrLimitExhausted, err)

	// The rejected order never reached the store.
	stored, err := order.GetOrder(ctx, _order.ID)
	require.Nil(t, err)
	assert.Nil(t, stored)

	remaining, err := limiter.GetRemaining(ctx, "usdt")
	require.Nil(t, err)
	assert.Equal(t, "900", remaining.String())
	assert.Equal(t, 2, f.scripter.acquires)
}
