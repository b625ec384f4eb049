package executor

import (
	"context"
	"fmt"
	"time"

	logger "github.com/NpoolPlatform/go-service-framework/pkg/logger"

	asyncfeed "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/asyncfeed"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/chain"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/custodial"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"

	"github.com/shopspring/decimal"
)

type txHandler struct {
	*types.TickTx
	persistent  chan interface{}
	notif       chan interface{}
	done        chan interface{}
	outcome     types.Outcome
	fromAddress string
	toAddress   string
	chainTxID   string
	fee         string
	note        string
}

func (h *txHandler) requiredDepth() uint64 {
	amount, err := decimal.NewFromString(h.Amount)
	if err != nil {
		return h.Spec.UpperDepth
	}
	return h.Spec.RequiredDepth(amount)
}

func (h *txHandler) depthOf(blockHeight uint64) uint64 {
	if h.ChainStatus.BestHeight < blockHeight {
		return 0
	}
	return h.ChainStatus.BestHeight - blockHeight
}

func (h *txHandler) expired() bool {
	now := uint32(time.Now().Unix())
	return h.TxTime > 0 && now > h.TxTime && now-h.TxTime > h.Spec.MaxWaitSeconds
}

func (h *txHandler) inNotExistedGrace() bool {
	now := uint32(time.Now().Unix())
	return h.TxTime == 0 || now <= h.TxTime || now-h.TxTime <= h.Spec.NotExistedGrace
}

// checkCustodial resolves a destination leg that was paid out through the
// custodial gateway rather than signed locally.
func (h *txHandler) checkCustodial(ctx context.Context, _order *ordertypes.Order) error {
	result, err := custodial.PollWithdrawStatus(ctx, _order.ID)
	if err != nil {
		return err
	}
	switch result.State {
	case custodial.WithdrawStatePending:
	case custodial.WithdrawStateSuccess:
		h.outcome = types.OutcomeConfirmed
		h.chainTxID = result.TxID
		h.fee = result.Fee
	case custodial.WithdrawStateFailed:
		h.outcome = types.OutcomeFailed
		h.note = fmt.Sprintf("custodial withdraw failed %v", _order.ID)
	default:
		return fmt.Errorf("invalid withdraw state %v", result.State)
	}
	return nil
}

// checkNode resolves the transaction against the chain node. Node logs are
// authoritative for the transfer addresses.
func (h *txHandler) checkNode(ctx context.Context) error {
	result, err := chain.QueryTxStatus(ctx, h.ChainID, h.TxID)
	if err != nil {
		return err
	}
	switch result.Status {
	case chain.TxStatusNotExisted:
		if h.inNotExistedGrace() {
			return nil
		}
		h.outcome = types.OutcomeFailed
		h.note = fmt.Sprintf("tx %v not existed", h.TxID)
	case chain.TxStatusFailed:
		fallthrough //nolint
	case chain.TxStatusNodeValidationFailed:
		h.outcome = types.OutcomeFailed
		h.note = result.Error
	case chain.TxStatusPending:
	case chain.TxStatusMined:
		if h.depthOf(result.BlockNumber) < h.requiredDepth() {
			return nil
		}
		h.outcome = types.OutcomeConfirmed
		h.chainTxID = result.TxID
		for _, log := range result.Logs {
			if log.Symbol != h.Symbol {
				continue
			}
			h.fromAddress = log.FromAddress
			h.toAddress = log.ToAddress
			break
		}
	default:
		return fmt.Errorf("invalid tx status %v", result.Status)
	}
	return nil
}

// checkIndexer resolves the transaction from the batch-indexed view the
// sentinel fetched for this tick.
func (h *txHandler) checkIndexer(ctx context.Context) error {
	if h.Indexed == nil {
		if h.inNotExistedGrace() {
			return nil
		}
		// Not yet indexed past the grace window; fall back to the node
		// before declaring anything.
		return h.checkNode(ctx)
	}
	switch h.Indexed.Status {
	case chain.TxStatusFailed:
		fallthrough //nolint
	case chain.TxStatusNodeValidationFailed:
		h.outcome = types.OutcomeFailed
		h.note = fmt.Sprintf("tx %v failed on chain", h.TxID)
	case chain.TxStatusPending:
	case chain.TxStatusMined:
		if h.depthOf(h.Indexed.BlockHeight) < h.requiredDepth() {
			return nil
		}
		h.outcome = types.OutcomeConfirmed
		h.chainTxID = h.Indexed.TxID
		h.fromAddress = h.Indexed.FromAddress
		h.toAddress = h.Indexed.ToAddress
	default:
		return fmt.Errorf("invalid tx status %v", h.Indexed.Status)
	}
	return nil
}

//nolint:gocritic
func (h *txHandler) final(ctx context.Context, err *error) {
	if *err != nil {
		logger.Sugar().Errorw(
			"final",
			"OrderID", h.OrderID,
			"LegKind", h.LegKind,
			"Class", h.Class,
			"Outcome", h.outcome,
			"Error", *err,
		)
	}

	persistentTx := &types.PersistentTx{
		TickTx:      h.TickTx,
		Outcome:     h.outcome,
		FromAddress: h.fromAddress,
		ToAddress:   h.toAddress,
		ChainTxID:   h.chainTxID,
		Fee:         h.fee,
		Note:        h.note,
		Error:       *err,
	}
	if *err != nil {
		asyncfeed.AsyncFeed(ctx, persistentTx, h.notif)
	}
	if h.outcome != types.OutcomeKeep {
		asyncfeed.AsyncFeed(ctx, persistentTx, h.persistent)
		return
	}
	asyncfeed.AsyncFeed(ctx, persistentTx, h.done)
}

//nolint:gocritic
func (h *txHandler) exec(ctx context.Context) error {
	h.outcome = types.OutcomeKeep
	var err error

	defer h.final(ctx, &err)

	_order, err := order.GetOrder(ctx, h.OrderID)
	if err != nil {
		return err
	}
	if _order == nil || _order.Status.Terminal() {
		h.outcome = types.OutcomeDiscard
		return nil
	}
	if leg := _order.Leg(h.LegKind); leg.TxID != h.TxID {
		// The actor reassigned the attempt; this entry watches a dead txid.
		h.outcome = types.OutcomeDiscard
		return nil
	}

	if h.LegKind == ordertypes.LegKindTo && _order.ThirdPartyOrderID != "" {
		return h.checkCustodial(ctx, _order)
	}

	if h.expired() {
		h.outcome = types.OutcomeExpired
		h.note = fmt.Sprintf("tx %v unresolved for %v seconds", h.TxID, h.Spec.MaxWaitSeconds)
		return nil
	}

	if h.TxID == "" {
		return fmt.Errorf("invalid txid")
	}

	if h.IndexerStale {
		return h.checkNode(ctx)
	}
	return h.checkIndexer(ctx)
}
