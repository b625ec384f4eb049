package notif

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/pubsub"

	basenotif "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/notif"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/message"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

type handler struct{}

func NewNotif() basenotif.Notify {
	return &handler{}
}

func (p *handler) notifyTx(tx *types.PersistentTx) error {
	return pubsub.WithPublisher(func(publisher *pubsub.Publisher) error {
		req := &message.MsgError{}
		if tx.Error != nil {
			req.Error = tx.Error.Error()
		}
		value, _ := json.Marshal(tx.PendingTx)
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

func (p *handler) Notify(ctx context.Context, tx interface{}) error {
	_tx, ok := tx.(*types.PersistentTx)
	if !ok {
		return fmt.Errorf("invalid tx")
	}
	if err := p.notifyTx(_tx); err != nil {
		logger.Sugar().Errorw(
			"notifyTx",
			"OrderID", _tx.OrderID,
			"LegKind", _tx.LegKind,
			"Error", err,
		)
		return err
	}
	return nil
}
