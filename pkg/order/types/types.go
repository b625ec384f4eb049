package types

type OrderType string

const (
	OrderTypeDeposit  OrderType = "Deposit"
	OrderTypeWithdraw OrderType = "Withdraw"
	OrderTypeSwap     OrderType = "Swap"
	OrderTypeTransfer OrderType = "Transfer"
)

type OrderStatus string

const (
	OrderStatusInitialized           OrderStatus = "Initialized"
	OrderStatusCreated               OrderStatus = "Created"
	OrderStatusPending               OrderStatus = "Pending"
	OrderStatusFromStartTransfer     OrderStatus = "FromStartTransfer"
	OrderStatusFromTransferring      OrderStatus = "FromTransferring"
	OrderStatusFromTransferred       OrderStatus = "FromTransferred"
	OrderStatusFromTransferConfirmed OrderStatus = "FromTransferConfirmed"
	OrderStatusFromTransferFailed    OrderStatus = "FromTransferFailed"
	OrderStatusToStartTransfer       OrderStatus = "ToStartTransfer"
	OrderStatusToTransferring        OrderStatus = "ToTransferring"
	OrderStatusToTransferred         OrderStatus = "ToTransferred"
	OrderStatusToTransferConfirmed   OrderStatus = "ToTransferConfirmed"
	OrderStatusToTransferFailed      OrderStatus = "ToTransferFailed"
	OrderStatusExpired               OrderStatus = "Expired"
	OrderStatusFailed                OrderStatus = "Failed"
	OrderStatusFinish                OrderStatus = "Finish"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFinish:
		fallthrough //nolint
	case OrderStatusFailed:
		fallthrough //nolint
	case OrderStatusExpired:
		fallthrough //nolint
	case OrderStatusToTransferFailed:
		return true
	}
	return false
}

var nextStatuses = map[OrderStatus][]OrderStatus{
	OrderStatusInitialized:           {OrderStatusFromStartTransfer},
	OrderStatusCreated:               {OrderStatusFromStartTransfer},
	OrderStatusPending:               {OrderStatusFromStartTransfer},
	OrderStatusFromStartTransfer:     {OrderStatusFromTransferring, OrderStatusFromTransferFailed},
	OrderStatusFromTransferring:      {OrderStatusFromTransferred, OrderStatusFromTransferConfirmed, OrderStatusFromTransferFailed},
	OrderStatusFromTransferred:       {OrderStatusFromTransferConfirmed, OrderStatusFromTransferFailed},
	OrderStatusFromTransferConfirmed: {OrderStatusToStartTransfer},
	OrderStatusToStartTransfer:       {OrderStatusToTransferring, OrderStatusToTransferFailed},
	OrderStatusToTransferring:        {OrderStatusToTransferred, OrderStatusToTransferConfirmed, OrderStatusToTransferFailed},
	OrderStatusToTransferred:         {OrderStatusToTransferConfirmed, OrderStatusToTransferFailed},
	OrderStatusToTransferConfirmed:   {OrderStatusFinish},
	OrderStatusFromTransferFailed:    {OrderStatusFailed},
}

// LegalNext reports whether from → to is a transition of the order state
// machine. Expired and Failed are reachable from any non-terminal state;
// nothing is reachable from a terminal state.
func LegalNext(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == OrderStatusExpired || to == OrderStatusFailed {
		return true
	}
	for _, next := range nextStatuses[from] {
		if next == to {
			return true
		}
	}
	return false
}

type TransferStatus string

const (
	TransferStatusCreated       TransferStatus = "Created"
	TransferStatusStartTransfer TransferStatus = "StartTransfer"
	TransferStatusTransferring  TransferStatus = "Transferring"
	TransferStatusTransferred   TransferStatus = "Transferred"
	TransferStatusConfirmed     TransferStatus = "Confirmed"
	TransferStatusFailed        TransferStatus = "Failed"
)

type LegKind string

const (
	LegKindFrom LegKind = "From"
	LegKindTo   LegKind = "To"
)

// Recognized ExtensionInfo keys. The bag is persisted with the order; only
// these keys are ever written.
const (
	ExtKeyToTransferForwarded = "ToTransferForwarded"
	ExtKeySubStatus           = "SubStatus"
	ExtKeyRawTransaction      = "RawTransaction"
	ExtKeyReleaseRawTx        = "ReleaseRawTransaction"
	ExtKeyErrorNote           = "ErrorNote"
	ExtKeyLimitAcquired       = "LimitAcquired"
	ExtKeyLimitReversed       = "LimitReversed"
)

type FeeInfo struct {
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

type TransferLeg struct {
	ChainID     string         `gorm:"type:varchar(64)"`
	Symbol      string         `gorm:"type:varchar(32)"`
	Amount      string         `gorm:"type:varchar(64)"`
	FromAddress string         `gorm:"type:varchar(256)"`
	ToAddress   string         `gorm:"type:varchar(256)"`
	TxID        string         `gorm:"type:varchar(128);index"`
	TxTime      uint32         `gorm:"default:0"`
	Status      TransferStatus `gorm:"type:varchar(32)"`
	FeeInfos    []FeeInfo      `gorm:"serializer:json;type:text"`
}

type Order struct {
	ID                string            `gorm:"type:varchar(64);primaryKey"`
	OrderType         OrderType         `gorm:"type:varchar(16);index"`
	Status            OrderStatus       `gorm:"type:varchar(32);index"`
	FromTransfer      TransferLeg       `gorm:"embedded;embeddedPrefix:from_"`
	ToTransfer        TransferLeg       `gorm:"embedded;embeddedPrefix:to_"`
	ExtensionInfo     map[string]string `gorm:"serializer:json;type:text"`
	AmountUsd         string            `gorm:"type:varchar(64)"`
	ThirdPartyOrderID string            `gorm:"type:varchar(128)"`
	CreateTime        uint32            `gorm:"index"`
	LastModifyTime    uint32            `gorm:"index"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) Leg(kind LegKind) *TransferLeg {
	if kind == LegKindTo {
		return &o.ToTransfer
	}
	return &o.FromTransfer
}

func (o *Order) Extension(key string) string {
	if o.ExtensionInfo == nil {
		return ""
	}
	return o.ExtensionInfo[key]
}

func (o *Order) SetExtension(key, val string) {
	if o.ExtensionInfo == nil {
		o.ExtensionInfo = map[string]string{}
	}
	o.ExtensionInfo[key] = val
}

// StatusFlow is the append-only audit trail of persisted transitions.
type StatusFlow struct {
	ID         uint32      `gorm:"primaryKey;autoIncrement"`
	OrderID    string      `gorm:"type:varchar(64);index"`
	FromStatus OrderStatus `gorm:"type:varchar(32)"`
	ToStatus   OrderStatus `gorm:"type:varchar(32)"`
	Note       string      `gorm:"type:varchar(512)"`
	CreatedAt  uint32
}

func (StatusFlow) TableName() string {
	return "order_status_flows"
}
