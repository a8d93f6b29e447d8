// Package pricing derives deterministic prices and rewards from fixed
// tariff tables. Everything here is pure; no I/O, no clocks.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Ryno2390/Co-Lab/internal/ledger"
	"github.com/Ryno2390/Co-Lab/internal/router"
)

// Tier is the invocation cost class of a fixed specialist.
type Tier string

const (
	TierSimple  Tier = "simple_fixed"
	TierComplex Tier = "complex_fixed"
)

// Tariff is the fixed fee schedule for a query. Amounts are in COLAB
// tokens with 8-place precision.
type Tariff struct {
	BaseFee           decimal.Decimal
	DecompositionFee  decimal.Decimal
	RoutingFeePerTask decimal.Decimal
	SynthesisFee      decimal.Decimal

	SimpleFixedFee  decimal.Decimal
	ComplexFixedFee decimal.Decimal
	DynamicFee      decimal.Decimal

	// SpecialistTiers maps specialist ids to their cost tier. Unrecognized
	// specialists price at the complex tier.
	SpecialistTiers map[string]Tier
}

// DefaultTariff returns the v1 fee schedule.
func DefaultTariff() Tariff {
	return Tariff{
		BaseFee:           decimal.NewFromInt(1),
		DecompositionFee:  decimal.NewFromInt(5),
		RoutingFeePerTask: decimal.RequireFromString("0.5"),
		SynthesisFee:      decimal.NewFromInt(10),
		SimpleFixedFee:    decimal.NewFromInt(2),
		ComplexFixedFee:   decimal.NewFromInt(5),
		DynamicFee:        decimal.NewFromInt(10),
		SpecialistTiers: map[string]Tier{
			"SummarizationAI":         TierSimple,
			"QuestionAnsweringAI":     TierSimple,
			"IPFSSearchAndRetrieveAI": TierComplex,
			"CodeGeneratorAI":         TierComplex,
			"DataAnalysisAI":          TierComplex,
		},
	}
}

// Price computes the total cost of a query from its routing decisions:
// base + decomposition + per-task routing + per-decision invocation +
// synthesis, rounded to the ledger's 8-place precision. Pure function of
// the tariff and its input.
func (t Tariff) Price(decisions []router.Decision) decimal.Decimal {
	total := t.BaseFee.
		Add(t.DecompositionFee).
		Add(t.RoutingFeePerTask.Mul(decimal.NewFromInt(int64(len(decisions))))).
		Add(t.SynthesisFee)

	for _, d := range decisions {
		total = total.Add(t.invocationFee(d))
	}

	return total.Round(ledger.Precision)
}

func (t Tariff) invocationFee(d router.Decision) decimal.Decimal {
	if d.Kind != router.KindFixed {
		return t.DynamicFee
	}

	tier, ok := t.SpecialistTiers[d.TargetID]
	if !ok {
		tier = TierComplex
	}
	if tier == TierSimple {
		return t.SimpleFixedFee
	}
	return t.ComplexFixedFee
}
