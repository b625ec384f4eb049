package executor

import (
	"context"
	"fmt"

	baseexecutor "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/executor"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
)

type handler struct{}

func NewExecutor() baseexecutor.Exec {
	return &handler{}
}

func (e *handler) Exec(ctx context.Context, reminder interface{}, persistent, notif, done chan interface{}) error {
	_reminder, ok := reminder.(*types.OrderReminder)
	if !ok {
		return fmt.Errorf("invalid reminder")
	}

	h := &reminderHandler{
		OrderReminder: _reminder,
		persistent:    persistent,
		notif:         notif,
		done:          done,
	}
	return h.exec(ctx)
}
