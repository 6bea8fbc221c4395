package core

// Intent is a coarse label used to pick a fallback reply.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentInquiry   Intent = "inquiry"
	IntentComplaint Intent = "complaint"
	IntentOther     Intent = "other"

	// FallbackDefault keys the reply used when no intent entry exists.
	FallbackDefault = "default"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentGreeting, IntentInquiry, IntentComplaint, IntentOther:
		return true
	}
	return false
}

// DenyReason explains a policy denial.
type DenyReason string

const (
	DenyNone           DenyReason = ""
	DenyBlacklisted    DenyReason = "blacklisted"
	DenyNotWhitelisted DenyReason = "not_whitelisted"
	DenyQuotaExceeded  DenyReason = "quota_exceeded"
	DenyNoTrigger      DenyReason = "no_trigger"
)

// Decision is the outcome of the reply policy. A denial is not an error.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason DenyReason) Decision { return Decision{Reason: reason} }
