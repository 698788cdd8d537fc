package enums

import "fmt"

// ProofKind describes what a delivery proof links to.
type ProofKind string

const (
	ProofKindImage    ProofKind = "image"
	ProofKindVideo    ProofKind = "video"
	ProofKindTracking ProofKind = "tracking"
	ProofKindOther    ProofKind = "other"
)

var validProofKinds = []ProofKind{
	ProofKindImage,
	ProofKindVideo,
	ProofKindTracking,
	ProofKindOther,
}

func (p ProofKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProofKind.
func (p ProofKind) IsValid() bool {
	for _, candidate := range validProofKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProofKind converts raw input into a ProofKind.
func ParseProofKind(value string) (ProofKind, error) {
	for _, candidate := range validProofKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid proof kind %q", value)
}

// ProofStatus tracks the buyer review state of a delivery proof.
type ProofStatus string

const (
	ProofStatusPending  ProofStatus = "pending"
	ProofStatusAccepted ProofStatus = "accepted"
	ProofStatusRejected ProofStatus = "rejected"
)

func (p ProofStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProofStatus.
func (p ProofStatus) IsValid() bool {
	switch p {
	case ProofStatusPending, ProofStatusAccepted, ProofStatusRejected:
		return true
	default:
		return false
	}
}
