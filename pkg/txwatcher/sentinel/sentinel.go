package sentinel

import (
	"context"
	"time"

	"github.com/NpoolPlatform/go-service-framework/pkg/logger"

	cancelablefeed "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/cancelablefeed"
	basesentinel "github.com/OpenBridgePlatform/bridge-scheduler/pkg/base/sentinel"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/chain"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"
	constant "github.com/OpenBridgePlatform/bridge-scheduler/pkg/const"
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/pendingset"
	types "github.com/OpenBridgePlatform/bridge-scheduler/pkg/txwatcher/types"
)

const batchTxIDs = int(10)

type handler struct {
	class types.Class
}

func NewSentinel(class types.Class) basesentinel.Scanner {
	return &handler{
		class: class,
	}
}

// chainTick is the per-chain context fetched once per scan pass and shared
// by every pending entry on that chain.
type chainTick struct {
	status        *chain.ChainStatus
	indexerHeight uint64
	indexerStale  bool
}

func (h *handler) tickChain(ctx context.Context, chainID string) (*chainTick, error) {
	status, err := chain.GetChainStatus(ctx, chainID)
	if err != nil {
		return nil, err
	}
	tick := &chainTick{
		status: status,
	}
	height, err := chain.GetIndexerHeight(ctx, chainID)
	if err != nil {
		logger.Sugar().Warnw(
			"tickChain",
			"ChainID", chainID,
			"Error", err,
		)
		tick.indexerStale = true
		return tick, nil
	}
	tick.indexerHeight = height
	if status.LastIrreversibleHeight > height &&
		status.LastIrreversibleHeight-height > config.GetConfirmSpec("").IndexerHeightSlack {
		tick.indexerStale = true
	}
	return tick, nil
}

func (h *handler) feedChain(ctx context.Context, chainID string, pendings []*types.PendingTx, exec chan interface{}) {
	tick, err := h.tickChain(ctx, chainID)
	if err != nil {
		logger.Sugar().Warnw(
			"feedChain",
			"ChainID", chainID,
			"Class", h.class,
			"Error", err,
		)
		return
	}

	indexed := map[string]*chain.IndexedTransfer{}
	if !tick.indexerStale {
		for i := 0; i < len(pendings); i += batchTxIDs {
			end := i + batchTxIDs
			if end > len(pendings) {
				end = len(pendings)
			}
			txIDs := []string{}
			for _, pending := range pendings[i:end] {
				if pending.TxID != "" {
					txIDs = append(txIDs, pending.TxID)
				}
			}
			if len(txIDs) == 0 {
				continue
			}
			transfers, err := chain.BatchGetIndexedTransfers(ctx, chainID, txIDs, 0)
			if err != nil {
				logger.Sugar().Warnw(
					"feedChain",
					"ChainID", chainID,
					"Class", h.class,
					"Error", err,
				)
				tick.indexerStale = true
				break
			}
			for _, transfer := range transfers {
				indexed[transfer.TxID] = transfer
			}
		}
	}

	now := uint32(time.Now().Unix())
	for _, pending := range pendings {
		spec := config.GetConfirmSpec(pending.Symbol)
		stale := tick.indexerStale
		if pending.TxTime > 0 && now > pending.TxTime &&
			now-pending.TxTime > spec.QueryFromNodeAfter {
			// Aged past the indexer window; resolve from the node.
			stale = true
		}
		cancelablefeed.CancelableFeed(ctx, &types.TickTx{
			PendingTx:     pending,
			ChainStatus:   tick.status,
			IndexerHeight: tick.indexerHeight,
			IndexerStale:  stale,
			Indexed:       indexed[pending.TxID],
			Spec:          spec,
		}, exec)
	}
}

func (h *handler) Scan(ctx context.Context, exec chan interface{}) error {
	offset := int32(0)
	limit := constant.DefaultRowLimit

	byChain := map[string][]*types.PendingTx{}
	for {
		pendings, err := pendingset.GetPendingTxs(ctx, h.class, offset, limit)
		if err != nil {
			return err
		}
		if len(pendings) == 0 {
			break
		}
		for _, pending := range pendings {
			byChain[pending.ChainID] = append(byChain[pending.ChainID], pending)
		}
		offset += limit
	}

	for chainID, pendings := range byChain {
		h.feedChain(ctx, chainID, pendings, exec)
	}
	return nil
}

func (h *handler) InitScan(ctx context.Context, exec chan interface{}) error {
	return nil
}

func (h *handler) TriggerScan(ctx context.Context, cond interface{}, exec chan interface{}) error {
	return nil
}

func (h *handler) ObjectID(ent interface{}) string {
	switch tx := ent.(type) {
	case *types.TickTx:
		return tx.OrderID
	case *types.PersistentTx:
		return tx.OrderID
	}
	return ""
}
