package limiter

import (
	"context"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
)

// fakeScripter runs the limiter scripts against an in-process map with the
// same single-operation semantics redis gives the Lua scripts.
type fakeScripter struct {
	mu       sync.Mutex
	spent    map[string]decimal.Decimal
	acquires int
	reverses int
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{
		spent: map[string]decimal.Decimal{},
	}
}

func (f *fakeScripter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keys[0]
	amount, err := decimal.NewFromString(args[0].(string))
	if err != nil {
		return redis.NewCmdResult(nil, err)
	}

	switch script {
	case acquireScript:
		f.acquires++
		cap, err := decimal.NewFromString(args[1].(string))
		if err != nil {
			return redis.NewCmdResult(nil, err)
		}
		if f.spent[key].Add(amount).Cmp(cap) > 0 {
			return redis.NewCmdResult(int64(0), nil)
		}
		f.spent[key] = f.spent[key].Add(amount)
		return redis.NewCmdResult(int64(1), nil)
	case reverseScript:
		f.reverses++
		if amount.Cmp(f.spent[key]) > 0 {
			amount = f.spent[key]
		}
		f.spent[key] = f.spent[key].Sub(amount)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(nil, redis.Nil)
}

func (f *fakeScripter) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	spent, ok := f.spent[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(spent.String(), nil)
}

func TestAcquireReverseConservation(t *testing.T) {
	config.SetOverride("usdt_daily_withdraw_limit", "1000")
	fake := newFakeScripter()
	SetScripter(fake)
	defer SetScripter(nil)

	ctx := context.Background()

	before, err := GetRemaining(ctx, "usdt")
	assert.Nil(t, err)
	assert.Equal(t, "1000", before.String())

	acquired, err := Acquire(ctx, "usdt", decimal.NewFromInt(100))
	assert.Nil(t, err)
	assert.True(t, acquired)

	after, err := GetRemaining(ctx, "usdt")
	assert.Nil(t, err)
	assert.Equal(t, "900", after.String())

	assert.Nil(t, Reverse(ctx, "usdt", decimal.NewFromInt(100)))

	restored, err := GetRemaining(ctx, "usdt")
	assert.Nil(t, err)
	assert.Equal(t, before.String(), restored.String())
}

func TestAcquireOverCap(t *testing.T) {
	config.SetOverride("eth_daily_withdraw_limit", "100")
	fake := newFakeScripter()
	SetScripter(fake)
	defer SetScripter(nil)

	ctx := context.Background()

	acquired, err := Acquire(ctx, "eth", decimal.NewFromInt(60))
	assert.Nil(t, err)
	assert.True(t, acquired)

	acquired, err = Acquire(ctx, "eth", decimal.NewFromInt(60))
	assert.Nil(t, err)
	assert.False(t, acquired)

	remaining, err := GetRemaining(ctx, "eth")
	assert.Nil(t, err)
	assert.Equal(t, "40", remaining.String())
}

func TestReverseNeverBelowZero(t *testing.T) {
	config.SetOverride("trx_daily_withdraw_limit", "100")
	fake := newFakeScripter()
	SetScripter(fake)
	defer SetScripter(nil)

	ctx := context.Background()

	acquired, err := Acquire(ctx, "trx", decimal.NewFromInt(10))
	assert.Nil(t, err)
	assert.True(t, acquired)

	// Credit back more than was ever spent; remaining must floor at cap.
	assert.Nil(t, Reverse(ctx, "trx", decimal.NewFromInt(50)))

	remaining, err := GetRemaining(ctx, "trx")
	assert.Nil(t, err)
	assert.Equal(t, "100", remaining.String())
}

func TestAcquireNoCapConfigured(t *testing.T) {
	fake := newFakeScripter()
	SetScripter(fake)
	defer SetScripter(nil)

	acquired, err := Acquire(context.Background(), "nocap", decimal.NewFromInt(10))
	assert.Nil(t, err)
	assert.True(t, acquired)
	assert.Equal(t, 0, fake.acquires)
}
