package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Ryno2390/Co-Lab/internal/ledger"
)

// RewardPolicy is the fixed schedule for data contribution rewards.
type RewardPolicy struct {
	// PerMB is the reward per megabyte of uploaded content.
	PerMB decimal.Decimal

	// MetadataBonus is added when every required metadata field is present
	// and non-empty.
	MetadataBonus decimal.Decimal

	// RequiredMetadataFields gate the metadata bonus.
	RequiredMetadataFields []string

	// MinSizeBytes and MaxSizeBytes bound reward-eligible uploads; content
	// outside the range earns nothing.
	MinSizeBytes int64
	MaxSizeBytes int64
}

// DefaultRewardPolicy returns the v1 reward schedule.
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		PerMB:                  decimal.RequireFromString("0.01"),
		MetadataBonus:          decimal.RequireFromString("0.5"),
		RequiredMetadataFields: []string{"filename", "description", "tags"},
		MinSizeBytes:           1,
		MaxSizeBytes:           1 << 30,
	}
}

var bytesPerMB = decimal.NewFromInt(1 << 20)

// DataReward computes the reward for an upload of sizeBytes with the given
// user metadata. Returns zero when the size gate fails. Pure function.
func (p RewardPolicy) DataReward(sizeBytes int64, metadata map[string]string) decimal.Decimal {
	if sizeBytes < p.MinSizeBytes || sizeBytes > p.MaxSizeBytes {
		return decimal.Zero
	}

	reward := decimal.NewFromInt(sizeBytes).Div(bytesPerMB).Mul(p.PerMB)

	if p.metadataComplete(metadata) {
		reward = reward.Add(p.MetadataBonus)
	}

	return reward.Round(ledger.Precision)
}

func (p RewardPolicy) metadataComplete(metadata map[string]string) bool {
	if metadata == nil {
		return false
	}
	for _, field := range p.RequiredMetadataFields {
		if metadata[field] == "" {
			return false
		}
	}
	return true
}
