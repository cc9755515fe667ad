package model

import "time"

type ConfigCategory string

const (
	ConfigCategoryCommission ConfigCategory = "COMMISSION"
	ConfigCategoryEscrow     ConfigCategory = "ESCROW"
	ConfigCategoryBilling    ConfigCategory = "BILLING"
)

// Well-known configuration keys. Values are read on every operation so edits
// take effect without restart.
const (
	ConfigKeyCommissionBasicBps      = "commission.rate_bps.basic"
	ConfigKeyCommissionPremiumBps    = "commission.rate_bps.premium"
	ConfigKeyCommissionEnterpriseBps = "commission.rate_bps.enterprise"
	ConfigKeyCommissionRefundable    = "commission.refundable"
	ConfigKeyEscrowHoldDays          = "escrow.hold_days"
	ConfigKeyBillingGraceDays        = "billing.grace_days"
)

// PaymentConfig is a named, versioned configuration value.
type PaymentConfig struct {
	Key       string
	Category  ConfigCategory
	Value     string
	Version   int
	UpdatedBy string
	UpdatedAt time.Time
}
