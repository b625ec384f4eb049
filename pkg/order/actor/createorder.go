package actor

import (
	"context"
	"fmt"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/limiter"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidationError rejects malformed input before any state or persistence
// mutation. Never retried.
type ValidationError struct {
	message string
}

func (e *ValidationError) Error() string {
	return e.message
}

func validationError(format string, args ...interface{}) error {
	return &ValidationError{message: fmt.Sprintf(format, args...)}
}

// ErrLimitExhausted rejects a withdraw whose amount does not fit in the
// symbol's remaining daily allowance.
var ErrLimitExhausted = fmt.Errorf("daily withdraw limit exhausted")

func validateOrder(_order *ordertypes.Order) error {
	switch _order.OrderType {
	case ordertypes.OrderTypeDeposit:
	case ordertypes.OrderTypeWithdraw:
	case ordertypes.OrderTypeSwap:
	case ordertypes.OrderTypeTransfer:
	default:
		return validationError("invalid order type %v", _order.OrderType)
	}

	from := _order.Leg(ordertypes.LegKindFrom)
	if from.ChainID == "" {
		return validationError("invalid from chain")
	}
	if from.Symbol == "" {
		return validationError("invalid from symbol")
	}
	amount, err := decimal.NewFromString(from.Amount)
	if err != nil || amount.Cmp(decimal.NewFromInt(0)) <= 0 {
		return validationError("invalid from amount %v", from.Amount)
	}

	to := _order.Leg(ordertypes.LegKindTo)
	if to.Symbol == "" {
		return validationError("invalid to symbol")
	}
	if to.ToAddress == "" {
		return validationError("invalid to address")
	}
	if _, err := decimal.NewFromString(to.Amount); err != nil {
		return validationError("invalid to amount %v", to.Amount)
	}

	if _order.OrderType == ordertypes.OrderTypeDeposit {
		if from.TxID == "" {
			return validationError("invalid deposit txid")
		}
		return nil
	}
	if _order.Extension(ordertypes.ExtKeyRawTransaction) == "" {
		return validationError("invalid raw transaction")
	}
	return nil
}

// CreateOrder validates, reserves the daily allowance for withdraws,
// persists the order and synchronously advances it past Created, so no
// order is ever durably stuck in its just-created state.
func CreateOrder(ctx context.Context, _order *ordertypes.Order) error {
	if a == nil {
		return fmt.Errorf("actor not initialized")
	}
	if err := validateOrder(_order); err != nil {
		return err
	}

	if _order.ID == "" {
		_order.ID = uuid.NewString()
	}
	_order.Status = ordertypes.OrderStatusCreated
	from := _order.Leg(ordertypes.LegKindFrom)
	from.Status = ordertypes.TransferStatusCreated
	_order.Leg(ordertypes.LegKindTo).Status = ordertypes.TransferStatusCreated

	if _order.OrderType == ordertypes.OrderTypeWithdraw {
		amount, _ := decimal.NewFromString(from.Amount)
		acquired, err := limiter.Acquire(ctx, from.Symbol, amount)
		if err != nil {
			return err
		}
		if !acquired {
			return ErrLimitExhausted
		}
		_order.SetExtension(ordertypes.ExtKeyLimitAcquired, "true")
	}

	if err := order.CreateOrder(ctx, _order); err != nil {
		if _order.Extension(ordertypes.ExtKeyLimitAcquired) == "true" {
			amount, _ := decimal.NewFromString(from.Amount)
			_ = limiter.Reverse(ctx, from.Symbol, amount) //nolint
		}
		return err
	}
	if err := reminder.Register(ctx, _order); err != nil {
		return err
	}

	ev := &event{
		orderID: _order.ID,
		err:     make(chan error, 1),
	}
	if err := a.deliver(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-ev.err:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
