package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const coinbaseAPI = "https://api.coinbase.com/v2/prices/COIN-USD/sell"

type apiData struct {
	Base     string `json:"base"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type apiResp struct {
	Data apiData `json:"data"`
}

func coinbaseUSDPrice(ctx context.Context, symbol string) (float64, error) {
	coin := strings.ToUpper(symbol)

	socksProxy := os.Getenv("ENV_CURRENCY_REQUEST_PROXY")
	url := strings.ReplaceAll(coinbaseAPI, "COIN", coin)

	cli := resty.New()
	cli = cli.SetTimeout(5 * time.Second)
	if socksProxy != "" {
		cli = cli.SetProxy(socksProxy)
	}

	resp, err := cli.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, fmt.Errorf("fail get currency %v: %v", coin, err)
	}
	r := apiResp{}
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return 0, fmt.Errorf("fail parse currency %v: %v", coin, err)
	}

	if coin != r.Data.Base {
		return 0, fmt.Errorf("invalid get coin currency from %v: %v", url, string(resp.Body()))
	}

	amount, err := strconv.ParseFloat(r.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coin currency amount: %v", err)
	}

	return amount, nil
}
