package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const coinGeckoAPI = "https://api.coingecko.com/api/v3"

var geckoCoinMap = map[string]string{
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"usdt": "tether",
	"usdc": "usd-coin",
	"trx":  "tron",
}

func mapCoin(symbol string) string {
	if name, ok := geckoCoinMap[strings.ToLower(symbol)]; ok {
		return name
	}
	return strings.ToLower(symbol)
}

func coinGeckoUSDPrice(ctx context.Context, symbol string) (float64, error) {
	coin := mapCoin(symbol)

	socksProxy := os.Getenv("ENV_CURRENCY_REQUEST_PROXY")
	url := fmt.Sprintf("%v%v?ids=%v&vs_currencies=usd", coinGeckoAPI, "/simple/price", coin)

	cli := resty.New()
	cli = cli.SetTimeout(5 * time.Second)
	if socksProxy != "" {
		cli = cli.SetProxy(socksProxy)
	}

	resp, err := cli.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, fmt.Errorf("fail get currency %v: %v", coin, err)
	}
	respMap := map[string]map[string]float64{}
	if err := json.Unmarshal(resp.Body(), &respMap); err != nil {
		return 0, fmt.Errorf("fail parse currency %v: %v", coin, err)
	}

	prices, ok := respMap[coin]
	if !ok {
		return 0, fmt.Errorf("invalid coin currency %v", coin)
	}
	price, ok := prices["usd"]
	if !ok {
		return 0, fmt.Errorf("invalid coin currency %v", coin)
	}
	return price, nil
}
