package executor

import (
	"context"
	"fmt"

	baseexecutor "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/executor"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

type handler struct{}

func NewExecutor() baseexecutor.Exec {
	return &handler{}
}

func (e *handler) Exec(ctx context.Context, tx interface{}, persistent, notif, done chan interface{}) error {
	_tx, ok := tx.(*types.TickTx)
	if !ok {
		return fmt.Errorf("invalid tx")
	}

	h := &txHandler{
		TickTx:     _tx,
		persistent: persistent,
		notif:      notif,
		done:       done,
	}
	return h.exec(ctx)
}
