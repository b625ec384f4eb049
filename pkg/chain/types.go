package chain

type TxStatus string

const (
	TxStatusPending              TxStatus = "Pending"
	TxStatusMined                TxStatus = "Mined"
	TxStatusFailed               TxStatus = "Failed"
	TxStatusNodeValidationFailed TxStatus = "NodeValidationFailed"
	TxStatusNotExisted           TxStatus = "NotExisted"
)

type ChainStatus struct {
	ChainID                string `json:"chainId"`
	BestHeight             uint64 `json:"bestHeight"`
	LongestHeight          uint64 `json:"longestHeight"`
	LastIrreversibleHeight uint64 `json:"lastIrreversibleHeight"`
}

// TxLog is the node-side event record of a transfer. Addresses here are
// authoritative; a client-signed transaction hides the true parties.
type TxLog struct {
	Event       string `json:"event"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Symbol      string `json:"symbol"`
	Amount      string `json:"amount"`
}

type TxResult struct {
	TxID        string   `json:"txId"`
	Status      TxStatus `json:"status"`
	BlockNumber uint64   `json:"blockNumber"`
	Logs        []TxLog  `json:"logs"`
	Error       string   `json:"error"`
}

type IndexedTransfer struct {
	TxID        string   `json:"txId"`
	FromAddress string   `json:"fromAddress"`
	ToAddress   string   `json:"toAddress"`
	BlockHeight uint64   `json:"blockHeight"`
	Status      TxStatus `json:"status"`
}
