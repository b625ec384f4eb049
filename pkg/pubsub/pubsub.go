package pubsub

import (
	"context"
	"fmt"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"
	"github.com/NpoolPlatform/go-service-framework/pkg/pubsub"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/message"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/pubsub/createorder"

	"github.com/google/uuid"
)

var subscriber *pubsub.Subscriber

func Subscribe(ctx context.Context) (err error) {
	subscriber, err = pubsub.NewSubscriber()
	if err != nil {
		return err
	}
	return subscriber.Subscribe(ctx, handler)
}

func Shutdown(ctx context.Context) error {
	if subscriber != nil {
		return subscriber.Close()
	}
	return nil
}

// prepare unmarshals a message body for its mid. A nil request means the
// mid is not ours and the message is skipped.
func prepare(mid, body string) (req interface{}, err error) {
	switch mid {
	case message.MsgCreateOrderReq:
		req, err = createorder.Prepare(body)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fail prepare %v: %v", mid, err)
	}
	return req, nil
}

func apply(ctx context.Context, mid string, req interface{}) error {
	switch mid {
	case message.MsgCreateOrderReq:
		return createorder.Apply(ctx, req)
	}
	return fmt.Errorf("invalid mid %v", mid)
}

func finish(mid string, uid uuid.UUID, respToID *uuid.UUID, req interface{}, err error) {
	if req == nil {
		return
	}
	if err1 := pubsub.WithPublisher(func(publisher *pubsub.Publisher) error {
		return publisher.Update(mid, &uid, respToID, err, req)
	}); err1 != nil {
		logger.Sugar().Errorw(
			"finish",
			"MID", mid,
			"UID", uid,
			"Error", err1,
		)
	}
}

func handler(ctx context.Context, mid string, uid uuid.UUID, body string, respToID *uuid.UUID) {
	req, err := prepare(mid, body)
	if err != nil {
		logger.Sugar().Errorw(
			"handler",
			"MID", mid,
			"UID", uid,
			"Body", body,
			"Error", err,
		)
		return
	}
	if req == nil {
		return
	}

	err = apply(ctx, mid, req)
	finish(mid, uid, respToID, req, err)
}
