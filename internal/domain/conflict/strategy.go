package conflict

// StatusRanker maps a status string to its lifecycle rank so the strategy
// table can tell whether the channel view is further along than the local one.
type StatusRanker func(status string) int

// SelectStrategy is the deterministic resolution-strategy table keyed by
// conflict type, business-impact flags and region context.
func SelectStrategy(r *Record, rank StatusRanker) Strategy {
	// Safety override: a conflict that is critical, customer-facing and
	// touches both shipping and payment always goes to a human.
	if r.Impact.Critical && r.Impact.CustomerFacing && r.Impact.AffectsShipping && r.Impact.AffectsPayment {
		return StrategyManualReview
	}

	switch r.Type {
	case TypeStatusMismatch, TypeShippingDiscrepancy:
		if rank != nil && rank(r.ExternalStatus) > rank(r.LocalStatus) {
			// The platform has seen the order progress further; its view wins.
			return StrategyPlatformWins
		}
		if r.Impact.CustomerFacing {
			return StrategyManualReview
		}
		// Local state is ahead: push the local value back out per business rule.
		return StrategyBusinessRuleBased

	case TypePaymentInconsistency:
		if r.Impact.AffectsPayment && r.Impact.Critical {
			return StrategyManualReview
		}
		return StrategyBusinessRuleBased

	case TypeInventoryConflict:
		if r.Impact.CustomerFacing {
			return StrategyManualReview
		}
		// Quantities merely need reconciliation: union both views.
		return StrategyAutomaticMerge

	case TypeTimingConflict:
		if r.Context.ObservanceWindow {
			return StrategyDefer
		}
		return StrategyBusinessRuleBased

	default:
		return StrategyManualReview
	}
}
