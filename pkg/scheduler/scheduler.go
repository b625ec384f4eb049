package scheduler

import (
	"context"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/actor"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/reminder"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher"
)

// The actor comes up first so the driver is registered before any watcher
// or reminder tick can need it, and goes down last for the same reason.
func Initialize(ctx context.Context, cancel context.CancelFunc) {
	actor.Initialize(ctx, cancel)
	txwatcher.Initialize(ctx, cancel)
	reminder.Initialize(ctx, cancel)
}

func Finalize(ctx context.Context) {
	reminder.Finalize(ctx)
	txwatcher.Finalize(ctx)
	actor.Finalize(ctx)
}

type initializer struct {
	init  func(context.Context, context.CancelFunc)
	final func(context.Context)
}

var subsystems = map[string]initializer{
	"orderactor": {actor.Initialize, actor.Finalize},
	"txwatcher":  {txwatcher.Initialize, txwatcher.Finalize},
	"reminder":   {reminder.Initialize, reminder.Finalize},
}

func FinalizeSubsystem(ctx context.Context, system string) {
	_finalizer, ok := subsystems[system]
	if !ok {
		return
	}
	_finalizer.final(ctx)
}

func InitializeSubsystem(ctx context.Context, system string) {
	_initializer, ok := subsystems[system]
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	_initializer.init(ctx, cancel)
}
