// Package mev selects and prices priority-submission strategies so trades are
// not captured by front-runners, and submits protected trades to the bundle
// relay.
package mev

import (
	"go.uber.org/zap"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

// PlanKind tags the chosen submission strategy.
type PlanKind int

const (
	// PlanStandard submits through the endpoint pool without protection.
	PlanStandard PlanKind = iota
	// PlanPriorityFee boosts a standard submission with a compute-unit fee.
	PlanPriorityFee
	// PlanBundle submits through the relay with a validator tip.
	PlanBundle
)

func (k PlanKind) String() string {
	switch k {
	case PlanBundle:
		return "bundle"
	case PlanPriorityFee:
		return "priority_fee"
	default:
		return "standard"
	}
}

// ProtectionPlan is the priced strategy for one trade attempt. Exactly one of
// TipLamports (bundle) or FeeMicroLamports (priority fee) is meaningful,
// selected by Kind.
type ProtectionPlan struct {
	Kind             PlanKind
	TipLamports      uint64 // bundle tip, PlanBundle only
	FeeMicroLamports uint64 // per-compute-unit fee, PlanPriorityFee only
}

// Guard chooses and prices a protection plan from an urgency classification.
type Guard struct {
	bundlingEnabled   bool
	minTipLamports    uint64
	maxTipLamports    uint64
	basePriorityFee   uint64
	dynamicAdjustment bool

	logger *zap.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithBasePriorityFee overrides the base priority-fee rate.
func WithBasePriorityFee(microLamports uint64) GuardOption {
	return func(g *Guard) { g.basePriorityFee = microLamports }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) GuardOption {
	return func(g *Guard) { g.logger = logger }
}

// NewGuard creates a Guard. The tip ceiling is fixed at ten times the minimum.
func NewGuard(bundlingEnabled bool, minTipLamports uint64, dynamicAdjustment bool, opts ...GuardOption) *Guard {
	g := &Guard{
		bundlingEnabled:   bundlingEnabled,
		minTipLamports:    minTipLamports,
		maxTipLamports:    minTipLamports * 10,
		basePriorityFee:   50_000,
		dynamicAdjustment: dynamicAdjustment,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultGuard enables bundling with a 0.001 SOL minimum tip and dynamic
// scaling.
func DefaultGuard() *Guard {
	return NewGuard(true, 1_000_000, true)
}

// Protect chooses a plan for the given urgency:
//
//	Critical, High  -> bundle (when bundling is enabled)
//	Medium, High    -> priority fee
//	Low             -> standard
func (g *Guard) Protect(urgency domain.UrgencyLevel) ProtectionPlan {
	if g.bundlingEnabled && (urgency == domain.UrgencyHigh || urgency == domain.UrgencyCritical) {
		tip := g.DynamicTip(urgency)
		g.logger.Info("protecting trade with bundle",
			zap.Stringer("urgency", urgency),
			zap.Uint64("tip_lamports", tip))
		return ProtectionPlan{Kind: PlanBundle, TipLamports: tip}
	}

	if urgency == domain.UrgencyMedium || urgency == domain.UrgencyHigh {
		fee := g.PriorityFee(urgency)
		g.logger.Info("protecting trade with priority fee",
			zap.Stringer("urgency", urgency),
			zap.Uint64("fee_micro_lamports", fee))
		return ProtectionPlan{Kind: PlanPriorityFee, FeeMicroLamports: fee}
	}

	g.logger.Debug("trade sent unprotected", zap.Stringer("urgency", urgency))
	return ProtectionPlan{Kind: PlanStandard}
}

// DynamicTip scales the minimum tip by urgency: x1, x2, x4, x8, capped at
// ten times the minimum. Static guards always pay the minimum.
func (g *Guard) DynamicTip(urgency domain.UrgencyLevel) uint64 {
	if !g.dynamicAdjustment {
		return g.minTipLamports
	}

	var multiplier uint64
	switch urgency {
	case domain.UrgencyCritical:
		multiplier = 8
	case domain.UrgencyHigh:
		multiplier = 4
	case domain.UrgencyMedium:
		multiplier = 2
	default:
		multiplier = 1
	}

	tip := g.minTipLamports * multiplier
	if tip > g.maxTipLamports {
		return g.maxTipLamports
	}
	return tip
}

// PriorityFee scales the base rate by urgency: x1, x2, x5, x10.
func (g *Guard) PriorityFee(urgency domain.UrgencyLevel) uint64 {
	if !g.dynamicAdjustment {
		return g.basePriorityFee
	}

	var multiplier uint64
	switch urgency {
	case domain.UrgencyCritical:
		multiplier = 10
	case domain.UrgencyHigh:
		multiplier = 5
	case domain.UrgencyMedium:
		multiplier = 2
	default:
		multiplier = 1
	}
	return g.basePriorityFee * multiplier
}

// EstimateCost returns the total protection cost in lamports for a trade
// consuming computeUnits.
func (g *Guard) EstimateCost(urgency domain.UrgencyLevel, computeUnits uint64) uint64 {
	if g.bundlingEnabled && (urgency == domain.UrgencyHigh || urgency == domain.UrgencyCritical) {
		return g.DynamicTip(urgency) + g.basePriorityFee*computeUnits/1_000_000
	}
	return g.PriorityFee(urgency) * computeUnits / 1_000_000
}

// RecommendUrgency classifies a trade from its characteristics. Time-sensitive
// large trades are Critical; time-sensitive or large trades, or trades that
// consume more than 5% of the pool, are High.
func (g *Guard) RecommendUrgency(isTimeSensitive bool, amountSOL, poolLiquiditySOL float64) domain.UrgencyLevel {
	if isTimeSensitive && amountSOL > 5 {
		return domain.UrgencyCritical
	}
	if isTimeSensitive || amountSOL > 2 {
		return domain.UrgencyHigh
	}
	if poolLiquiditySOL < 0.1 {
		poolLiquiditySOL = 0.1
	}
	if amountSOL/poolLiquiditySOL > 0.05 {
		return domain.UrgencyHigh
	}
	if amountSOL > 0.5 {
		return domain.UrgencyMedium
	}
	return domain.UrgencyLow
}
