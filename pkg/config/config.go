package config

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/NpoolPlatform/go-service-framework/pkg/config"

	constant "github.com/OpenBridgePlatform/bridge-scheduler/pkg/const"

	"github.com/shopspring/decimal"
)

var localSubsystems sync.Map

func SupportSubsystem(system string) bool {
	if val, ok := localSubsystems.Load(system); ok {
		return val.(bool)
	}
	subsystems := config.GetStringSliceValueWithNameSpace("", config.KeySubsystems)
	for _, subsystem := range subsystems {
		if system == subsystem {
			return true
		}
	}
	return false
}

func Subsystems() []string {
	return config.GetStringSliceValueWithNameSpace("", config.KeySubsystems)
}

func EnableSubsystem(system string) {
	localSubsystems.Store(system, true)
}

func DisableSubsystem(system string) {
	localSubsystems.Store(system, false)
}

// ConfirmSpec is the per-symbol confirmation policy snapshot. It is built
// once per watcher tick and never re-read in the middle of one.
type ConfirmSpec struct {
	Symbol              string
	FastAmountThreshold decimal.Decimal
	LowerDepth          uint64
	UpperDepth          uint64
	QueryFromNodeAfter  uint32
	IndexerHeightSlack  uint64
	NotExistedGrace     uint32
	MaxWaitSeconds      uint32
}

var overrides sync.Map

// SetOverride pins a key to a local value ahead of the config service.
// Used for live operational overrides and by tests.
func SetOverride(key, value string) {
	overrides.Store(key, value)
}

func stringValue(key, def string) string {
	if val, ok := overrides.Load(key); ok {
		return val.(string)
	}
	if val := config.GetStringValueWithNameSpace("", key); val != "" {
		return val
	}
	return def
}

func intValue(key string, def int) int {
	if val, ok := overrides.Load(key); ok {
		if n, err := strconv.Atoi(val.(string)); err == nil && n > 0 {
			return n
		}
		return def
	}
	if val := config.GetIntValueWithNameSpace("", key); val > 0 {
		return val
	}
	return def
}

func GetConfirmSpec(symbol string) *ConfirmSpec {
	threshold, err := decimal.NewFromString(
		stringValue(fmt.Sprintf("%v_fast_amount_threshold", symbol), "0"),
	)
	if err != nil {
		threshold = decimal.NewFromInt(0)
	}
	return &ConfirmSpec{
		Symbol:              symbol,
		FastAmountThreshold: threshold,
		LowerDepth:          uint64(intValue("block_height_lower_threshold", int(constant.DefaultBlockHeightLowerThreshold))),
		UpperDepth:          uint64(intValue("block_height_upper_threshold", int(constant.DefaultBlockHeightUpperThreshold))),
		QueryFromNodeAfter:  uint32(intValue("query_from_node_seconds", int(constant.DefaultQueryFromNodeSeconds))),
		IndexerHeightSlack:  uint64(intValue("indexer_height_slack", int(constant.DefaultIndexerHeightSlack))),
		NotExistedGrace:     uint32(intValue("not_existed_grace_seconds", int(constant.DefaultNotExistedGraceSeconds))),
		MaxWaitSeconds:      uint32(intValue("max_wait_seconds", int(constant.DefaultMaxWaitSeconds))),
	}
}

// RequiredDepth is the fast confirmation rule: legs at or below the symbol
// threshold settle at LowerDepth, larger legs wait for UpperDepth.
func (s *ConfirmSpec) RequiredDepth(amount decimal.Decimal) uint64 {
	if s.FastAmountThreshold.Cmp(decimal.NewFromInt(0)) > 0 &&
		amount.Cmp(s.FastAmountThreshold) <= 0 {
		return s.LowerDepth
	}
	return s.UpperDepth
}

func ChainAPIEndpoint(chainID string) string {
	return stringValue(fmt.Sprintf("%v_chain_api_endpoint", chainID), "")
}

func IndexerAPIEndpoint(chainID string) string {
	return stringValue(fmt.Sprintf("%v_indexer_api_endpoint", chainID), "")
}

func CustodialAPIEndpoint() string {
	return stringValue("custodial_api_endpoint", "")
}

func CustodialAPIKey() string {
	return stringValue("custodial_api_key", "")
}

func DailyWithdrawLimit(symbol string) decimal.Decimal {
	limit, err := decimal.NewFromString(
		stringValue(fmt.Sprintf("%v_daily_withdraw_limit", symbol), "0"),
	)
	if err != nil {
		return decimal.NewFromInt(0)
	}
	return limit
}

func WithdrawFeeRate(symbol string) decimal.Decimal {
	rate, err := decimal.NewFromString(
		stringValue(fmt.Sprintf("%v_withdraw_fee_rate", symbol), "0"),
	)
	if err != nil {
		return decimal.NewFromInt(0)
	}
	return rate
}

func ReminderInterval() uint32 {
	return uint32(intValue("reminder_interval_seconds", int(constant.DefaultReminderIntervalSeconds)))
}

func ReminderRetries() uint32 {
	return uint32(intValue("reminder_retries", int(constant.DefaultReminderRetries)))
}
