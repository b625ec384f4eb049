package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/chain"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/currency"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/custodial"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"

	"github.com/shopspring/decimal"
)

// Prepare stamps the destination leg before submission: the payout fee is
// deducted from the leg amount and recorded, and the order is valued in USD
// for reporting. Idempotent; a re-run on a stamped order changes nothing.
func Prepare(ctx context.Context, order *ordertypes.Order) error {
	leg := order.Leg(ordertypes.LegKindTo)
	if len(leg.FeeInfos) > 0 {
		return nil
	}

	amount, err := decimal.NewFromString(leg.Amount)
	if err != nil {
		return fmt.Errorf("invalid to amount %v: %v", leg.Amount, err)
	}

	rate := config.WithdrawFeeRate(leg.Symbol)
	if rate.Cmp(decimal.NewFromInt(0)) > 0 {
		fee := amount.Mul(rate)
		if fee.Cmp(amount) >= 0 {
			return fmt.Errorf("fee %v consumes amount %v", fee, amount)
		}
		leg.Amount = amount.Sub(fee).String()
		leg.FeeInfos = append(leg.FeeInfos, ordertypes.FeeInfo{
			Symbol: leg.Symbol,
			Amount: fee.String(),
		})
	}

	if order.AmountUsd == "" {
		price, err := currency.USDPrice(ctx, leg.Symbol)
		if err != nil {
			logger.Sugar().Warnw(
				"Prepare",
				"OrderID", order.ID,
				"Symbol", leg.Symbol,
				"Error", err,
			)
		} else {
			order.AmountUsd = amount.Mul(price).String()
		}
	}

	return nil
}

// Submit pays the destination leg out. Orders carrying a prebuilt release
// transaction go straight to the destination chain; everything else goes
// through the custodial gateway keyed by the order id.
func Submit(ctx context.Context, order *ordertypes.Order) error {
	leg := order.Leg(ordertypes.LegKindTo)

	if rawTx := order.Extension(ordertypes.ExtKeyReleaseRawTx); rawTx != "" {
		txID, err := chain.SendRawTransaction(ctx, leg.ChainID, rawTx)
		if err != nil {
			return err
		}
		leg.TxID = txID
		leg.TxTime = uint32(time.Now().Unix())
		leg.Status = ordertypes.TransferStatusTransferring
		return nil
	}

	if err := custodial.Withdraw(
		ctx,
		order.ID,
		leg.Symbol,
		leg.ToAddress,
		leg.Amount,
		order.ID,
	); err != nil {
		return err
	}
	order.ThirdPartyOrderID = order.ID
	leg.TxTime = uint32(time.Now().Unix())
	leg.Status = ordertypes.TransferStatusTransferring

	return nil
}
