package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"

	"github.com/go-resty/resty/v2"
)

// Client is the query facade over a chain node and its indexer. The default
// implementation talks JSON over HTTP; tests register their own.
type Client interface {
	GetChainStatus(ctx context.Context, chainID string) (*ChainStatus, error)
	GetIndexerHeight(ctx context.Context, chainID string) (uint64, error)
	QueryTxStatus(ctx context.Context, chainID, txID string) (*TxResult, error)
	BatchGetIndexedTransfers(ctx context.Context, chainID string, txIDs []string, sinceHeight uint64) ([]*IndexedTransfer, error)
	SendRawTransaction(ctx context.Context, chainID, rawTx string) (string, error)
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

func GetChainStatus(ctx context.Context, chainID string) (*ChainStatus, error) {
	return getClient().GetChainStatus(ctx, chainID)
}

func GetIndexerHeight(ctx context.Context, chainID string) (uint64, error) {
	return getClient().GetIndexerHeight(ctx, chainID)
}

func QueryTxStatus(ctx context.Context, chainID, txID string) (*TxResult, error) {
	return getClient().QueryTxStatus(ctx, chainID, txID)
}

func BatchGetIndexedTransfers(ctx context.Context, chainID string, txIDs []string, sinceHeight uint64) ([]*IndexedTransfer, error) {
	return getClient().BatchGetIndexedTransfers(ctx, chainID, txIDs, sinceHeight)
}

func SendRawTransaction(ctx context.Context, chainID, rawTx string) (string, error) {
	return getClient().SendRawTransaction(ctx, chainID, rawTx)
}

type restyClient struct{}

func newCli() *resty.Client {
	cli := resty.New()
	cli = cli.SetTimeout(10 * time.Second)
	return cli
}

func (c *restyClient) GetChainStatus(ctx context.Context, chainID string) (*ChainStatus, error) {
	endpoint := config.ChainAPIEndpoint(chainID)
	if endpoint == "" {
		return nil, fmt.Errorf("invalid chain endpoint %v", chainID)
	}
	resp, err := newCli().R().SetContext(ctx).Get(fmt.Sprintf("%v/api/blockChain/chainStatus", endpoint))
	if err != nil {
		return nil, fmt.Errorf("fail get chain status %v: %v", chainID, err)
	}
	status := ChainStatus{}
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return nil, fmt.Errorf("fail parse chain status %v: %v", chainID, err)
	}
	return &status, nil
}

func (c *restyClient) GetIndexerHeight(ctx context.Context, chainID string) (uint64, error) {
	endpoint := config.IndexerAPIEndpoint(chainID)
	if endpoint == "" {
		return 0, fmt.Errorf("invalid indexer endpoint %v", chainID)
	}
	resp, err := newCli().R().SetContext(ctx).Get(fmt.Sprintf("%v/api/app/block/latest", endpoint))
	if err != nil {
		return 0, fmt.Errorf("fail get indexer height %v: %v", chainID, err)
	}
	r := struct {
		Height uint64 `json:"height"`
	}{}
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return 0, fmt.Errorf("fail parse indexer height %v: %v", chainID, err)
	}
	return r.Height, nil
}

func (c *restyClient) QueryTxStatus(ctx context.Context, chainID, txID string) (*TxResult, error) {
	endpoint := config.ChainAPIEndpoint(chainID)
	if endpoint == "" {
		return nil, fmt.Errorf("invalid chain endpoint %v", chainID)
	}
	resp, err := newCli().R().SetContext(ctx).
		SetQueryParam("transactionId", txID).
		Get(fmt.Sprintf("%v/api/blockChain/transactionResult", endpoint))
	if err != nil {
		return nil, fmt.Errorf("fail get tx %v: %v", txID, err)
	}
	result := TxResult{}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("fail parse tx %v: %v", txID, err)
	}
	if result.Status == "" {
		result.Status = TxStatusNotExisted
	}
	result.TxID = txID
	return &result, nil
}

func (c *restyClient) BatchGetIndexedTransfers(ctx context.Context, chainID string, txIDs []string, sinceHeight uint64) ([]*IndexedTransfer, error) {
	endpoint := config.IndexerAPIEndpoint(chainID)
	if endpoint == "" {
		return nil, fmt.Errorf("invalid indexer endpoint %v", chainID)
	}
	req := struct {
		TxIDs       []string `json:"txIds"`
		SinceHeight uint64   `json:"sinceHeight"`
	}{
		TxIDs:       txIDs,
		SinceHeight: sinceHeight,
	}
	resp, err := newCli().R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&req).
		Post(fmt.Sprintf("%v/api/app/transfer/batch", endpoint))
	if err != nil {
		return nil, fmt.Errorf("fail get indexed transfers: %v", err)
	}
	transfers := []*IndexedTransfer{}
	if err := json.Unmarshal(resp.Body(), &transfers); err != nil {
		return nil, fmt.Errorf("fail parse indexed transfers: %v", err)
	}
	return transfers, nil
}

func (c *restyClient) SendRawTransaction(ctx context.Context, chainID, rawTx string) (string, error) {
	endpoint := config.ChainAPIEndpoint(chainID)
	if endpoint == "" {
		return "", fmt.Errorf("invalid chain endpoint %v", chainID)
	}
	req := struct {
		RawTransaction string `json:"rawTransaction"`
	}{
		RawTransaction: rawTx,
	}
	resp, err := newCli().R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&req).
		Post(fmt.Sprintf("%v/api/blockChain/sendRawTransaction", endpoint))
	if err != nil {
		return "", fmt.Errorf("fail send raw transaction: %v", err)
	}
	r := struct {
		TransactionID string `json:"transactionId"`
		Error         string `json:"error"`
	}{}
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return "", fmt.Errorf("fail parse send result: %v", err)
	}
	if r.Error != "" {
		return "", fmt.Errorf("fail send raw transaction: %v", r.Error)
	}
	if r.TransactionID == "" {
		return "", fmt.Errorf("invalid transaction id")
	}
	return r.TransactionID, nil
}
