package notif

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/pubsub"

	basenotif "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/notif"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/message"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder/types"
)

type handler struct{}

func NewNotif() basenotif.Notify {
	return &handler{}
}

func (p *handler) notifyReminder(reminder *types.PersistentReminder) error {
	return pubsub.WithPublisher(func(publisher *pubsub.Publisher) error {
		req := &message.MsgError{}
		if reminder.Error != nil {
			req.Error = reminder.Error.Error()
		} else {
			req.Error = fmt.Sprintf(
				"order %v stuck at %v after %v retries",
				reminder.OrderID,
				reminder.Status,
				reminder.Attempts,
			)
		}
		value, _ := json.Marshal(reminder.OrderReminder)
		req.Value = string(value)
		return publisher.Update(
			message.MsgOrderAlertNotif,
			nil,
			nil,
			nil,
			req,
		)
	})
}

func (p *handler) Notify(ctx context.Context, reminder interface{}) error {
	_reminder, ok := reminder.(*types.PersistentReminder)
	if !ok {
		return fmt.Errorf("invalid reminder")
	}
	if err := p.notifyReminder(_reminder); err != nil {
		logger.Sugar().Errorw(
			"notifyReminder",
			"OrderID", _reminder.OrderID,
			"Error", err,
		)
		return err
	}
	return nil
}
