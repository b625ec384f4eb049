package currency

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/cache"

	"github.com/shopspring/decimal"
)

type priceFunc func(ctx context.Context, symbol string) (float64, error)

var (
	priceFuncs = []priceFunc{
		coinGeckoUSDPrice,
		coinbaseUSDPrice,
	}
	override      priceFunc
	overrideMutex sync.RWMutex
)

// SetPriceFunc replaces the upstream price sources; tests use it.
func SetPriceFunc(f func(ctx context.Context, symbol string) (float64, error)) {
	overrideMutex.Lock()
	defer overrideMutex.Unlock()
	override = f
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("currency:usd:%v", symbol)
}

// USDPrice resolves the symbol's USD price through the first available
// upstream, falling back to the redis cache when every upstream fails.
func USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	overrideMutex.RLock()
	f := override
	overrideMutex.RUnlock()
	if f != nil {
		price, err := f(ctx, symbol)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromFloat(price), nil
	}

	for _, f := range priceFuncs {
		price, err := f(ctx, symbol)
		if err != nil {
			logger.Sugar().Warnw(
				"USDPrice",
				"Symbol", symbol,
				"Error", err,
			)
			continue
		}
		if err := cache.CreateCache(ctx, cacheKey(symbol), price, func(val string) (interface{}, error) {
			return strconv.ParseFloat(val, 64)
		}); err != nil {
			logger.Sugar().Warnw(
				"USDPrice",
				"State", "CreateCache",
				"Symbol", symbol,
				"Error", err,
			)
		}
		return decimal.NewFromFloat(price), nil
	}

	cached, err := cache.QueryCache(ctx, cacheKey(symbol))
	if err != nil || cached == nil {
		return decimal.Decimal{}, fmt.Errorf("fail get currency %v", symbol)
	}
	price, ok := cached.(float64)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("invalid cached currency %v", symbol)
	}
	return decimal.NewFromFloat(price), nil
}
