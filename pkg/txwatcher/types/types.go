package types

import (
	"github.com/OpenBridgePlatform/bridge-scheduler/pkg/config"

	chain "github.com/OpenBridgePlatform/bridge-scheduler/pkg/chain"
	ordertypes "github.com/OpenBridgePlatform/bridge-scheduler/pkg/order/types"
)

// Class identifies the one watcher owning a pending transaction. The class
// is fixed at registration so fast and normal watchers never race on the
// same leg.
type Class string

const (
	ClassFromTransfer     Class = "fromtransfer"
	ClassFromTransferFast Class = "fromtransferfast"
	ClassToTransfer       Class = "totransfer"
	ClassSwapTransfer     Class = "swaptransfer"
)

type PendingTx struct {
	ID      uint32             `gorm:"primaryKey;autoIncrement"`
	OrderID string             `gorm:"type:varchar(64);uniqueIndex:idx_pending_order_leg"`
	LegKind ordertypes.LegKind `gorm:"type:varchar(8);uniqueIndex:idx_pending_order_leg"`
	Class   Class              `gorm:"type:varchar(32);index"`
	ChainID string             `gorm:"type:varchar(64)"`
	Symbol  string             `gorm:"type:varchar(32)"`
	Amount  string             `gorm:"type:varchar(64)"`
	TxID    string             `gorm:"type:varchar(128)"`
	TxTime  uint32             `gorm:"default:0"`
}

func (PendingTx) TableName() string {
	return "watcher_pending_txs"
}

// TickTx is one pending entry plus the per-chain context its tick fetched
// once for the whole batch.
type TickTx struct {
	*PendingTx
	ChainStatus   *chain.ChainStatus
	IndexerHeight uint64
	IndexerStale  bool
	Indexed       *chain.IndexedTransfer
	Spec          *config.ConfirmSpec
}

type Outcome string

const (
	OutcomeKeep      Outcome = "Keep"
	OutcomeConfirmed Outcome = "Confirmed"
	OutcomeFailed    Outcome = "Failed"
	OutcomeExpired   Outcome = "Expired"
	// OutcomeDiscard drops the pending entry without touching the order;
	// used when the entry no longer matches the stored leg.
	OutcomeDiscard Outcome = "Discard"
)

type PersistentTx struct {
	*TickTx
	Outcome     Outcome
	FromAddress string
	ToAddress   string
	ChainTxID   string
	Fee         string
	Note        string
	Error       error
}
