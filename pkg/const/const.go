package constant

const DefaultRowLimit = int32(100)

const (
	// Confirmation depth for legs at or below the per-symbol fast threshold.
	DefaultBlockHeightLowerThreshold = uint64(1)
	// Confirmation depth for legs above the per-symbol fast threshold.
	DefaultBlockHeightUpperThreshold = uint64(12)

	// Seconds after submission before a pending transaction is resolved
	// against the node instead of the indexer.
	DefaultQueryFromNodeSeconds = uint32(300)
	// Maximum height the indexer may trail the node's last irreversible
	// height before it is treated as stale.
	DefaultIndexerHeightSlack = uint64(64)
	// Seconds after TxTime before NotExisted is trusted as a real miss.
	DefaultNotExistedGraceSeconds = uint32(10)
	// Seconds after TxTime before a pending transaction is force failed.
	DefaultMaxWaitSeconds = uint32(7200)

	DefaultReminderRetries         = uint32(3)
	DefaultReminderIntervalSeconds = uint32(120)
)
