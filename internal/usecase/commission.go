// File: internal/usecase/commission.go
package usecase

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"logistics-payment-engine/internal/domain"
	"logistics-payment-engine/internal/domain/model"
	"logistics-payment-engine/internal/domain/ports/repository"
)

// Compile-time check
var _ CommissionCalculator = (*commissionCalc)(nil)

// CommissionCalculator maps (amount, payer tier) to the platform's cut.
// Pure and safe for concurrent use.
type CommissionCalculator interface {
	// Calculate returns the commission in minor units and the rate applied in
	// basis points. Unknown tiers fall back to the lowest tier; a failed
	// config lookup falls back to compiled-in defaults. Commission must never
	// block escrow creation, so only an invalid amount is an error.
	Calculate(ctx context.Context, amount int64, tier model.SubscriptionTier) (commission int64, rateBps int64, err error)
}

// defaultRateBps is the compiled-in fallback when the COMMISSION config is
// unreadable.
var defaultRateBps = map[model.SubscriptionTier]int64{
	model.TierBasic:      700,
	model.TierPremium:    500,
	model.TierEnterprise: 300,
}

var tierConfigKey = map[model.SubscriptionTier]string{
	model.TierBasic:      model.ConfigKeyCommissionBasicBps,
	model.TierPremium:    model.ConfigKeyCommissionPremiumBps,
	model.TierEnterprise: model.ConfigKeyCommissionEnterpriseBps,
}

type commissionCalc struct {
	configs repository.ConfigRepository
	log     *zerolog.Logger
}

func NewCommissionCalculator(configs repository.ConfigRepository, logger *zerolog.Logger) *commissionCalc {
	return &commissionCalc{configs: configs, log: logger}
}

func (c *commissionCalc) Calculate(ctx context.Context, amount int64, tier model.SubscriptionTier) (int64, int64, error) {
	if amount <= 0 {
		return 0, 0, domain.ErrInvalidAmount
	}
	tier = model.NormalizeTier(string(tier))

	bps := defaultRateBps[tier]
	cfg, err := c.configs.Get(ctx, tierConfigKey[tier])
	switch {
	case err == nil:
		v, perr := strconv.ParseInt(cfg.Value, 10, 64)
		if perr != nil || v < 0 || v > 10000 {
			c.log.Warn().Str("key", cfg.Key).Str("value", cfg.Value).Msg("malformed commission rate; using default")
		} else {
			bps = v
		}
	case errors.Is(err, domain.ErrNotFound):
		// no override configured; defaults apply
	default:
		c.log.Warn().Err(err).Str("tier", string(tier)).Msg("commission config lookup failed; using default rate")
	}

	commission := roundHalfEven(amount*bps, 10000)
	if commission > amount {
		commission = amount
	}
	return commission, bps, nil
}

// roundHalfEven divides n by d rounding half to even (banker's rounding).
// Both arguments must be positive.
func roundHalfEven(n, d int64) int64 {
	q := n / d
	r := n % d
	switch {
	case 2*r > d:
		q++
	case 2*r == d && q%2 != 0:
		q++
	}
	return q
}
