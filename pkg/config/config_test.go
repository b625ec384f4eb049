package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRequiredDepth(t *testing.T) {
	spec := &ConfirmSpec{
		Symbol:              "usdt",
		FastAmountThreshold: decimal.NewFromInt(100),
		LowerDepth:          1,
		UpperDepth:          12,
	}

	small := spec.RequiredDepth(decimal.NewFromInt(50))
	atThreshold := spec.RequiredDepth(decimal.NewFromInt(100))
	large := spec.RequiredDepth(decimal.NewFromInt(101))

	assert.Equal(t, uint64(1), small)
	assert.Equal(t, uint64(1), atThreshold)
	assert.Equal(t, uint64(12), large)
	// Depth never shrinks as the amount grows.
	assert.GreaterOrEqual(t, large, small)
}

func TestRequiredDepthNoThreshold(t *testing.T) {
	spec := &ConfirmSpec{
		Symbol:     "btc",
		LowerDepth: 1,
		UpperDepth: 12,
	}
	assert.Equal(t, uint64(12), spec.RequiredDepth(decimal.NewFromInt(1)))
}

func TestGetConfirmSpec(t *testing.T) {
	SetOverride("usdt_fast_amount_threshold", "250")
	SetOverride("block_height_lower_threshold", "2")
	SetOverride("block_height_upper_threshold", "24")

	spec := GetConfirmSpec("usdt")
	assert.Equal(t, "250", spec.FastAmountThreshold.String())
	assert.Equal(t, uint64(2), spec.LowerDepth)
	assert.Equal(t, uint64(24), spec.UpperDepth)
}

func TestSubsystemToggle(t *testing.T) {
	EnableSubsystem("txwatcher")
	assert.True(t, SupportSubsystem("txwatcher"))
	DisableSubsystem("txwatcher")
	assert.False(t, SupportSubsystem("txwatcher"))
}
