package custodial

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"

	"github.com/go-resty/resty/v2"
)

type WithdrawState string

const (
	WithdrawStatePending WithdrawState = "pending"
	WithdrawStateSuccess WithdrawState = "success"
	WithdrawStateFailed  WithdrawState = "failed"
)

type WithdrawResult struct {
	RequestID    string        `json:"requestId"`
	State        WithdrawState `json:"state"`
	TxID         string        `json:"txId"`
	Fee          string        `json:"fee"`
	ConfirmedNum uint32        `json:"confirmedNum"`
}

// Client is the custodial payout gateway. Withdraw is idempotent on the
// request id; a duplicate response counts as acceptance.
type Client interface {
	Withdraw(ctx context.Context, requestID, coin, address, amount, memo string) error
	PollWithdrawStatus(ctx context.Context, requestID string) (*WithdrawResult, error)
}

var (
	client Client = &restyClient{}
	mutex  sync.RWMutex
)

func SetClient(cli Client) {
	mutex.Lock()
	defer mutex.Unlock()
	client = cli
}

func getClient() Client {
	mutex.RLock()
	defer mutex.RUnlock()
	return client
}

func Withdraw(ctx context.Context, requestID, coin, address, amount, memo string) error {
	return getClient().Withdraw(ctx, requestID, coin, address, amount, memo)
}

func PollWithdrawStatus(ctx context.Context, requestID string) (*WithdrawResult, error) {
	return getClient().PollWithdrawStatus(ctx, requestID)
}

type restyClient struct{}

func newCli() (*resty.Client, string, error) {
	endpoint := config.CustodialAPIEndpoint()
	if endpoint == "" {
		return nil, "", fmt.Errorf("invalid custodial endpoint")
	}
	cli := resty.New()
	cli = cli.SetTimeout(15 * time.Second)
	cli = cli.SetHeader("X-Api-Key", config.CustodialAPIKey())
	return cli, endpoint, nil
}

func (c *restyClient) Withdraw(ctx context.Context, requestID, coin, address, amount, memo string) error {
	cli, endpoint, err := newCli()
	if err != nil {
		return err
	}
	req := struct {
		RequestID string `json:"requestId"`
		Coin      string `json:"coin"`
		Address   string `json:"address"`
		Amount    string `json:"amount"`
		Memo      string `json:"memo,omitempty"`
	}{
		RequestID: requestID,
		Coin:      coin,
		Address:   address,
		Amount:    amount,
		Memo:      memo,
	}
	resp, err := cli.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&req).
		Post(fmt.Sprintf("%v/api/v1/withdraw", endpoint))
	if err != nil {
		return fmt.Errorf("fail request withdraw %v: %v", requestID, err)
	}
	r := struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}{}
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return fmt.Errorf("fail parse withdraw %v: %v", requestID, err)
	}
	switch r.Status {
	case "accepted":
		return nil
	case "duplicate":
		// Same request id already accepted, idempotent success
		return nil
	}
	return fmt.Errorf("fail withdraw %v: %v", requestID, r.Error)
}

func (c *restyClient) PollWithdrawStatus(ctx context.Context, requestID string) (*WithdrawResult, error) {
	cli, endpoint, err := newCli()
	if err != nil {
		return nil, err
	}
	resp, err := cli.R().SetContext(ctx).
		SetQueryParam("requestId", requestID).
		Get(fmt.Sprintf("%v/api/v1/withdraw/status", endpoint))
	if err != nil {
		return nil, fmt.Errorf("fail poll withdraw %v: %v", requestID, err)
	}
	result := WithdrawResult{}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("fail parse withdraw status %v: %v", requestID, err)
	}
	if result.State == "" {
		return nil, fmt.Errorf("invalid withdraw state %v", requestID)
	}
	return &result, nil
}
