package enums

// VIPStatus describes how a user's VIP pricing was granted.
type VIPStatus string

const (
	VIPStatusNone     VIPStatus = "none"
	VIPStatusLifetime VIPStatus = "lifetime"
	VIPStatusTimed    VIPStatus = "timed"
)

var validVIPStatuses = []VIPStatus{
	VIPStatusNone,
	VIPStatusLifetime,
	VIPStatusTimed,
}

func (v VIPStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VIPStatus.
func (v VIPStatus) IsValid() bool {
	for _, candidate := range validVIPStatuses {
		if v == candidate {
			return true
		}
	}
	return false
}
