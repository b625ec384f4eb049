package persistent

import (
	"context"
	"fmt"

	asyncfeed "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/asyncfeed"
	basepersistent "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/persistent"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/pendingset"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

type handler struct{}

func NewPersistent() basepersistent.Persistenter {
	return &handler{}
}

// applied reports whether a crash-replayed resolution already landed, so a
// second delivery never mutates the order again.
func (p *handler) applied(tx *types.PersistentTx, _order *ordertypes.Order) bool {
	leg := _order.Leg(tx.LegKind)
	switch tx.Outcome {
	case types.OutcomeConfirmed:
		return leg.Status == ordertypes.TransferStatusConfirmed
	case types.OutcomeFailed:
		return leg.Status == ordertypes.TransferStatusFailed
	}
	return false
}

func (p *handler) applyConfirmed(tx *types.PersistentTx, _order *ordertypes.Order) {
	leg := _order.Leg(tx.LegKind)
	leg.Status = ordertypes.TransferStatusConfirmed
	if tx.ChainTxID != "" {
		leg.TxID = tx.ChainTxID
	}
	if tx.FromAddress != "" {
		leg.FromAddress = tx.FromAddress
	}
	if tx.ToAddress != "" {
		leg.ToAddress = tx.ToAddress
	}
	if tx.Fee != "" {
		leg.FeeInfos = append(leg.FeeInfos, ordertypes.FeeInfo{
			Symbol: leg.Symbol,
			Amount: tx.Fee,
		})
	}
	if tx.LegKind == ordertypes.LegKindTo {
		_order.Status = ordertypes.OrderStatusToTransferConfirmed
		return
	}
	_order.Status = ordertypes.OrderStatusFromTransferConfirmed
}

func (p *handler) applyFailed(tx *types.PersistentTx, _order *ordertypes.Order) {
	leg := _order.Leg(tx.LegKind)
	leg.Status = ordertypes.TransferStatusFailed
	if tx.Note != "" {
		_order.SetExtension(ordertypes.ExtKeyErrorNote, tx.Note)
	}
	if tx.LegKind == ordertypes.LegKindTo {
		_order.Status = ordertypes.OrderStatusToTransferFailed
		return
	}
	_order.Status = ordertypes.OrderStatusFromTransferFailed
}

// Update applies a watcher resolution to the order through the owning
// actor, then removes the durable pending entry. The entry outlives the
// resolution until the order write lands, so a crash replays the resolution
// instead of losing it.
func (p *handler) Update(ctx context.Context, tx interface{}, retry, notif, done chan interface{}) error {
	_tx, ok := tx.(*types.PersistentTx)
	if !ok {
		return fmt.Errorf("invalid tx")
	}

	if _tx.Outcome != types.OutcomeDiscard {
		_order, err := order.GetOrder(ctx, _tx.OrderID)
		if err != nil {
			return err
		}
		if _order != nil && !_order.Status.Terminal() && !p.applied(_tx, _order) {
			switch _tx.Outcome {
			case types.OutcomeConfirmed:
				p.applyConfirmed(_tx, _order)
			case types.OutcomeFailed:
				p.applyFailed(_tx, _order)
			case types.OutcomeExpired:
				_order.Status = ordertypes.OrderStatusExpired
				if _tx.Note != "" {
					_order.SetExtension(ordertypes.ExtKeyErrorNote, _tx.Note)
				}
			default:
				return fmt.Errorf("invalid outcome %v", _tx.Outcome)
			}
			driver, err := order.GetDriver()
			if err != nil {
				return err
			}
			if err := driver.AddOrUpdateOrder(ctx, _order, &order.SideInfo{
				Note: _tx.Note,
			}); err != nil {
				return err
			}
		}
	}

	if err := pendingset.DeletePendingTx(ctx, _tx.ID); err != nil {
		return err
	}

	asyncfeed.AsyncFeed(ctx, _tx, done)

	return nil
}
