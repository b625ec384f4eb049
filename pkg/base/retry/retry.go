package retry

import (
	"context"
	"sync"
	"time"
)

const retryDelay = time.Minute

type retryEnt struct {
	ent    interface{}
	retry  chan interface{}
	execAt time.Time
}

var entMap sync.Map

func handler(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
			entMap.Range(func(k, v interface{}) bool {
				ent := v.(*retryEnt)
				if time.Now().Before(ent.execAt) {
					return true
				}
				entMap.Delete(k)
				select {
				case ent.retry <- ent.ent:
				case <-ctx.Done():
					return false
				}
				return true
			})
		}
	}
}

func Initialize(ctx context.Context) {
	go handler(ctx)
}

func Retry(ctx context.Context, ent interface{}, retry chan interface{}) {
	entMap.Store(ent, &retryEnt{
		ent:    ent,
		retry:  retry,
		execAt: time.Now().Add(retryDelay),
	})
}
