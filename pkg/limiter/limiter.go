package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis2 "github.com/NpoolPlatform/go-service-framework/pkg/redis"
	"github.com/go-redis/redis/v8"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"

	"github.com/shopspring/decimal"
)

const (
	keyExpireSeconds = 48 * 60 * 60
	redisTimeout     = 5 * time.Second
)

// One key per symbol per UTC day; the scripts make check-and-deduct and
// credit-back single redis operations, so concurrent callers linearize.
const acquireScript = `
local spent = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
if spent + amount > cap then
  return 0
end
redis.call('INCRBYFLOAT', KEYS[1], amount)
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`

const reverseScript = `
local spent = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if amount > spent then
  amount = spent
end
if amount > 0 then
  redis.call('INCRBYFLOAT', KEYS[1], -amount)
end
return 1
`

type scripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

var (
	cli      scripter
	cliMutex sync.RWMutex
)

// SetScripter overrides the redis client; tests use it.
func SetScripter(s scripter) {
	cliMutex.Lock()
	defer cliMutex.Unlock()
	cli = s
}

func getScripter() (scripter, error) {
	cliMutex.RLock()
	if cli != nil {
		defer cliMutex.RUnlock()
		return cli, nil
	}
	cliMutex.RUnlock()
	return redis2.GetClient()
}

func dayKey(symbol string, at time.Time) string {
	return fmt.Sprintf("withdraw-limit:%v:%v", symbol, at.UTC().Format("20060102"))
}

// Acquire atomically reserves amount against the symbol's daily cap. A
// false return is an ordinary rejection, not an error.
func Acquire(ctx context.Context, symbol string, amount decimal.Decimal) (bool, error) {
	if amount.Cmp(decimal.NewFromInt(0)) <= 0 {
		return false, fmt.Errorf("invalid amount")
	}
	cap := config.DailyWithdrawLimit(symbol)
	if cap.Cmp(decimal.NewFromInt(0)) <= 0 {
		// No cap configured, nothing to reserve
		return true, nil
	}

	s, err := getScripter()
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := s.Eval(
		ctx,
		acquireScript,
		[]string{dayKey(symbol, time.Now())},
		amount.String(),
		cap.String(),
		keyExpireSeconds,
	).Result()
	if err != nil {
		return false, fmt.Errorf("fail acquire limit %v: %v", symbol, err)
	}
	ok, _ := val.(int64)
	return ok == 1, nil
}

// Reverse credits a reservation back; call it exactly once per acquired
// order, on the terminal failure path only.
func Reverse(ctx context.Context, symbol string, amount decimal.Decimal) error {
	if amount.Cmp(decimal.NewFromInt(0)) <= 0 {
		return fmt.Errorf("invalid amount")
	}
	cap := config.DailyWithdrawLimit(symbol)
	if cap.Cmp(decimal.NewFromInt(0)) <= 0 {
		return nil
	}

	s, err := getScripter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := s.Eval(
		ctx,
		reverseScript,
		[]string{dayKey(symbol, time.Now())},
		amount.String(),
	).Err(); err != nil {
		return fmt.Errorf("fail reverse limit %v: %v", symbol, err)
	}
	return nil
}

func GetRemaining(ctx context.Context, symbol string) (decimal.Decimal, error) {
	cap := config.DailyWithdrawLimit(symbol)
	if cap.Cmp(decimal.NewFromInt(0)) <= 0 {
		return decimal.Decimal{}, fmt.Errorf("invalid limit %v", symbol)
	}

	s, err := getScripter()
	if err != nil {
		return decimal.Decimal{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := s.Get(ctx, dayKey(symbol, time.Now())).Result()
	if err == redis.Nil {
		return cap, nil
	} else if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fail get limit %v: %v", symbol, err)
	}
	spent, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid spent %v: %v", symbol, err)
	}
	remaining := cap.Sub(spent)
	if remaining.Cmp(decimal.NewFromInt(0)) < 0 {
		remaining = decimal.NewFromInt(0)
	}
	return remaining, nil
}
