package pendingset

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/db"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

// ClassFor picks the single watcher owner for a leg submission: swap source
// legs get the swap watcher, destination legs the destination watcher, and
// source legs the fast watcher iff the amount is at or below the symbol's
// fast threshold. The class is fixed here so no two watchers ever own the
// same leg.
func ClassFor(orderType ordertypes.OrderType, legKind ordertypes.LegKind, symbol, amount string) types.Class {
	if orderType == ordertypes.OrderTypeSwap && legKind == ordertypes.LegKindFrom {
		return types.ClassSwapTransfer
	}
	if legKind == ordertypes.LegKindTo {
		return types.ClassToTransfer
	}
	spec := config.GetConfirmSpec(symbol)
	val, err := decimal.NewFromString(amount)
	if err == nil &&
		spec.FastAmountThreshold.Cmp(decimal.NewFromInt(0)) > 0 &&
		val.Cmp(spec.FastAmountThreshold) <= 0 {
		return types.ClassFromTransferFast
	}
	return types.ClassFromTransfer
}

// Register adds one leg of an order to the durable pending set. It is
// idempotent per (order, leg); re-registering an already watched leg is a
// no-op.
func Register(ctx context.Context, order *ordertypes.Order, legKind ordertypes.LegKind) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	leg := order.Leg(legKind)
	pending := &types.PendingTx{
		OrderID: order.ID,
		LegKind: legKind,
		Class:   ClassFor(order.OrderType, legKind, leg.Symbol, leg.Amount),
		ChainID: leg.ChainID,
		Symbol:  leg.Symbol,
		Amount:  leg.Amount,
		TxID:    leg.TxID,
		TxTime:  leg.TxTime,
	}
	if pending.TxTime == 0 {
		pending.TxTime = uint32(time.Now().Unix())
	}

	exist := int64(0)
	if err := cli.WithContext(ctx).
		Model(&types.PendingTx{}).
		Where("order_id = ? and leg_kind = ?", order.ID, legKind).
		Count(&exist).Error; err != nil {
		return err
	}
	if exist > 0 {
		return nil
	}
	return cli.WithContext(ctx).Create(pending).Error
}

func GetPendingTxs(ctx context.Context, class types.Class, offset, limit int32) ([]*types.PendingTx, error) {
	cli, err := db.Client()
	if err != nil {
		return nil, err
	}
	infos := []*types.PendingTx{}
	if err := cli.WithContext(ctx).
		Where("class = ?", class).
		Order("id asc").
		Offset(int(offset)).
		Limit(int(limit)).
		Find(&infos).Error; err != nil {
		return nil, err
	}
	return infos, nil
}

func DeletePendingTx(ctx context.Context, id uint32) error {
	cli, err := db.Client()
	if err != nil {
		return err
	}
	return cli.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.PendingTx{}).Error
}
