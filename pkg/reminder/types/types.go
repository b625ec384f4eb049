package types

import (
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
)

// OrderReminder is one durable retry budget for an in-flight order. The row
// is created with the order and survives restarts; Done rows are kept for
// audit.
type OrderReminder struct {
	ID              uint32                 `gorm:"primaryKey;autoIncrement"`
	OrderID         string                 `gorm:"type:varchar(64);uniqueIndex"`
	RetryFromStatus ordertypes.OrderStatus `gorm:"type:varchar(32)"`
	Attempts        uint32                 `gorm:"default:0"`
	NextDueAt       uint32                 `gorm:"index"`
	Done            bool                   `gorm:"default:false;index"`
	Alerted         bool                   `gorm:"default:false"`
}

func (OrderReminder) TableName() string {
	return "order_reminders"
}

type Outcome string

const (
	// OutcomeRemind re-drives the order and charges one attempt.
	OutcomeRemind Outcome = "Remind"
	// OutcomeSettle closes the reminder; the order reached a terminal state
	// or disappeared.
	OutcomeSettle Outcome = "Settle"
	// OutcomeExhaust closes the reminder with its budget spent and raises
	// the one alert the order gets.
	OutcomeExhaust Outcome = "Exhaust"
)

type PersistentReminder struct {
	*OrderReminder
	Outcome Outcome
	Status  ordertypes.OrderStatus
	Error   error
}
