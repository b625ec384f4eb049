package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/chain"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/limiter"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/notif"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/payout"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/pendingset"

	"github.com/shopspring/decimal"
)

// maxSteps caps in-process self-dispatch so corrupt data can never spin a
// shard loop forever.
const maxSteps = 10

type orderHandler struct {
	*ordertypes.Order
}

func (h *orderHandler) transition(ctx context.Context, next ordertypes.OrderStatus, note string) error {
	from := h.Status
	if !ordertypes.LegalNext(from, next) {
		return fmt.Errorf("illegal transition %v -> %v for order %v", from, next, h.ID)
	}
	h.Status = next
	return order.UpdateOrder(ctx, h.Order, from, note)
}

// failLeg persists the failure before anything else so a crash never leaves
// the order in an ambiguous non-persisted state.
func (h *orderHandler) failLeg(ctx context.Context, kind ordertypes.LegKind, cause error) error {
	h.Leg(kind).Status = ordertypes.TransferStatusFailed
	h.SetExtension(ordertypes.ExtKeyErrorNote, cause.Error())
	next := ordertypes.OrderStatusFromTransferFailed
	if kind == ordertypes.LegKindTo {
		next = ordertypes.OrderStatusToTransferFailed
	}
	return h.transition(ctx, next, cause.Error())
}

func (h *orderHandler) submitSource(ctx context.Context) (bool, error) {
	leg := h.Leg(ordertypes.LegKindFrom)

	if leg.TxID == "" {
		rawTx := h.Extension(ordertypes.ExtKeyRawTransaction)
		if rawTx == "" {
			return false, h.failLeg(ctx, ordertypes.LegKindFrom, fmt.Errorf("missing raw transaction"))
		}
		txID, err := chain.SendRawTransaction(ctx, leg.ChainID, rawTx)
		if err != nil {
			return false, h.failLeg(ctx, ordertypes.LegKindFrom, err)
		}
		leg.TxID = txID
		leg.TxTime = uint32(time.Now().Unix())
	}
	leg.Status = ordertypes.TransferStatusTransferring

	if err := h.transition(ctx, ordertypes.OrderStatusFromTransferring, ""); err != nil {
		return false, err
	}
	return false, pendingset.Register(ctx, h.Order, ordertypes.LegKindFrom)
}

func (h *orderHandler) submitDestination(ctx context.Context) (bool, error) {
	if err := payout.Submit(ctx, h.Order); err != nil {
		if failErr := h.failLeg(ctx, ordertypes.LegKindTo, err); failErr != nil {
			return false, failErr
		}
		// The failure branch still needs its compensation step.
		return true, nil
	}
	if err := h.transition(ctx, ordertypes.OrderStatusToTransferring, ""); err != nil {
		return false, err
	}
	return false, pendingset.Register(ctx, h.Order, ordertypes.LegKindTo)
}

// compensate credits the daily limit back exactly once on the failure path.
// The acquired/reversed markers keep re-entries and replays from paying the
// credit twice.
func (h *orderHandler) compensate(ctx context.Context) error {
	if h.Extension(ordertypes.ExtKeyLimitAcquired) != "true" {
		return nil
	}
	if h.Extension(ordertypes.ExtKeyLimitReversed) == "true" {
		return nil
	}
	leg := h.Leg(ordertypes.LegKindFrom)
	amount, err := decimal.NewFromString(leg.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %v: %v", leg.Amount, err)
	}
	if err := limiter.Reverse(ctx, leg.Symbol, amount); err != nil {
		return err
	}
	h.SetExtension(ordertypes.ExtKeyLimitReversed, "true")
	return order.UpdateOrder(ctx, h.Order, h.Status, "limit reversed")
}

func (h *orderHandler) settleFailed(ctx context.Context) (bool, error) {
	if err := h.compensate(ctx); err != nil {
		return false, err
	}
	if err := reminder.Cancel(ctx, h.ID); err != nil {
		return false, err
	}
	notif.NotifyOrderStatus(h.Order)
	return false, nil
}

func (h *orderHandler) finish(ctx context.Context) (bool, error) {
	if err := h.transition(ctx, ordertypes.OrderStatusFinish, ""); err != nil {
		return false, err
	}
	if err := reminder.Cancel(ctx, h.ID); err != nil {
		return false, err
	}
	notif.NotifyOrderStatus(h.Order)
	return false, nil
}

func (h *orderHandler) step(ctx context.Context) (bool, error) {
	switch h.Status {
	case ordertypes.OrderStatusInitialized:
		fallthrough //nolint
	case ordertypes.OrderStatusCreated:
		fallthrough //nolint
	case ordertypes.OrderStatusPending:
		if err := h.transition(ctx, ordertypes.OrderStatusFromStartTransfer, ""); err != nil {
			return false, err
		}
		return true, nil
	case ordertypes.OrderStatusFromStartTransfer:
		return h.submitSource(ctx)
	case ordertypes.OrderStatusFromTransferring:
		// Resolution arrives through the watcher; just make sure the leg
		// is registered in case a crash lost the registration.
		return false, pendingset.Register(ctx, h.Order, ordertypes.LegKindFrom)
	case ordertypes.OrderStatusFromTransferred:
		return false, nil
	case ordertypes.OrderStatusFromTransferConfirmed:
		if err := payout.Prepare(ctx, h.Order); err != nil {
			if failErr := h.failLeg(ctx, ordertypes.LegKindTo, err); failErr != nil {
				return false, failErr
			}
			return true, nil
		}
		if err := h.transition(ctx, ordertypes.OrderStatusToStartTransfer, ""); err != nil {
			return false, err
		}
		return true, nil
	case ordertypes.OrderStatusToStartTransfer:
		return h.submitDestination(ctx)
	case ordertypes.OrderStatusToTransferring:
		return false, pendingset.Register(ctx, h.Order, ordertypes.LegKindTo)
	case ordertypes.OrderStatusToTransferred:
		return false, nil
	case ordertypes.OrderStatusToTransferConfirmed:
		return h.finish(ctx)
	case ordertypes.OrderStatusFromTransferFailed:
		if err := h.transition(ctx, ordertypes.OrderStatusFailed, ""); err != nil {
			return false, err
		}
		return true, nil
	case ordertypes.OrderStatusToTransferFailed:
		fallthrough //nolint
	case ordertypes.OrderStatusExpired:
		fallthrough //nolint
	case ordertypes.OrderStatusFailed:
		return h.settleFailed(ctx)
	case ordertypes.OrderStatusFinish:
		return false, nil
	}
	return false, fmt.Errorf("invalid status %v for order %v", h.Status, h.ID)
}

func (h *orderHandler) advance(ctx context.Context) error {
	for step := 0; step < maxSteps; step++ {
		again, err := h.step(ctx)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
	logger.Sugar().Errorw(
		"advance",
		"OrderID", h.ID,
		"Status", h.Status,
		"Error", "step cap reached",
	)
	return fmt.Errorf("step cap reached for order %v", h.ID)
}
