package notif

import (
	"encoding/json"
	"sync"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/pubsub"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/message"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
)

var (
	publishFunc  func(mid string, req interface{}) error
	publishMutex sync.RWMutex
)

// SetPublishFunc replaces the bus publisher; tests use it.
func SetPublishFunc(f func(mid string, req interface{}) error) {
	publishMutex.Lock()
	defer publishMutex.Unlock()
	publishFunc = f
}

func publish(mid string, req interface{}) error {
	publishMutex.RLock()
	f := publishFunc
	publishMutex.RUnlock()
	if f != nil {
		return f(mid, req)
	}
	return pubsub.WithPublisher(func(publisher *pubsub.Publisher) error {
		return publisher.Update(mid, nil, nil, nil, req)
	})
}

// NotifyOrderStatus broadcasts an order snapshot. Fire and forget; a lost
// broadcast is recovered by status polling, never by the order pipeline.
func NotifyOrderStatus(order *ordertypes.Order) {
	if err := publish(message.MsgOrderStatusNotif, order); err != nil {
		logger.Sugar().Errorw(
			"NotifyOrderStatus",
			"OrderID", order.ID,
			"Status", order.Status,
			"Error", err,
		)
	}
}

// NotifyOrderError raises an operator alert for a failed order.
func NotifyOrderError(order *ordertypes.Order, err error) {
	req := &message.MsgError{
		Error: err.Error(),
	}
	value, _ := json.Marshal(order)
	req.Value = string(value)
	if err1 := publish(message.MsgOrderAlertNotif, req); err1 != nil {
		logger.Sugar().Errorw(
			"NotifyOrderError",
			"OrderID", order.ID,
			"Status", order.Status,
			"Error", err1,
		)
	}
}
