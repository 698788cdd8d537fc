package enums

import "fmt"

// PointsSource tags the origin of a points ledger row.
type PointsSource string

const (
	PointsSourceReferralSignup PointsSource = "referral_signup"
	PointsSourceDailyWheel     PointsSource = "daily_wheel"
	PointsSourceConversion     PointsSource = "conversion"
	PointsSourceAdminAdjust    PointsSource = "admin_adjust"
)

var validPointsSources = []PointsSource{
	PointsSourceReferralSignup,
	PointsSourceDailyWheel,
	PointsSourceConversion,
	PointsSourceAdminAdjust,
}

func (p PointsSource) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PointsSource.
func (p PointsSource) IsValid() bool {
	for _, candidate := range validPointsSources {
		if candidate == p {
			return true
		}
	}
	return false
}

// CreditSource tags the origin of a credit ledger row.
type CreditSource string

const (
	CreditSourceTradePayout   CreditSource = "trade_payout"
	CreditSourceReferralCut   CreditSource = "referral_cut"
	CreditSourceEscrowRefund  CreditSource = "escrow_refund"
	CreditSourcePointsConvert CreditSource = "points_convert"
	CreditSourceAdminAdjust   CreditSource = "admin_adjust"
)

var validCreditSources = []CreditSource{
	CreditSourceTradePayout,
	CreditSourceReferralCut,
	CreditSourceEscrowRefund,
	CreditSourcePointsConvert,
	CreditSourceAdminAdjust,
}

func (c CreditSource) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CreditSource.
func (c CreditSource) IsValid() bool {
	for _, candidate := range validCreditSources {
		if candidate == c {
			return true
		}
	}
	return false
}

// PayoutRole identifies the beneficiary of a payout ledger row.
type PayoutRole string

const (
	PayoutRoleOwner    PayoutRole = "owner"
	PayoutRoleReferrer PayoutRole = "referrer"
	PayoutRoleSeller   PayoutRole = "seller"
)

func (p PayoutRole) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutRole.
func (p PayoutRole) IsValid() bool {
	return p == PayoutRoleOwner || p == PayoutRoleReferrer || p == PayoutRoleSeller
}

// ParsePayoutRole converts raw input into a PayoutRole.
func ParsePayoutRole(value string) (PayoutRole, error) {
	switch PayoutRole(value) {
	case PayoutRoleOwner:
		return PayoutRoleOwner, nil
	case PayoutRoleReferrer:
		return PayoutRoleReferrer, nil
	case PayoutRoleSeller:
		return PayoutRoleSeller, nil
	default:
		return "", fmt.Errorf("invalid payout role %q", value)
	}
}
