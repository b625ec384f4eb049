package createorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/actor"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
)

func Prepare(body string) (interface{}, error) {
	req := ordertypes.Order{}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func Apply(ctx context.Context, req interface{}) error {
	in, ok := req.(*ordertypes.Order)
	if !ok {
		return fmt.Errorf("invalid request in apply")
	}
	return actor.CreateOrder(ctx, in)
}
