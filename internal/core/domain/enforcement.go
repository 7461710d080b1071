package domain

// EnforcementDecision is the ledger's verdict for one violation.
type EnforcementDecision string

const (
	DecisionNoChange             EnforcementDecision = "no_change"
	DecisionWarn                 EnforcementDecision = "warn"
	DecisionTemporaryRestriction EnforcementDecision = "temporary_restriction"
	DecisionPermanentBan         EnforcementDecision = "permanent_ban"
)

// Violation is one reported policy breach.
type Violation struct {
	Username   string `json:"username"`
	ObservedIP string `json:"observed_ip"`
	Reason     string `json:"reason,omitempty"`
	// GloballyDisruptive mutes the user regardless of strike count.
	GloballyDisruptive bool `json:"globally_disruptive"`
}

// EnforcementOutcome is returned to the caller, which decides how to
// surface it (rejecting bookings, showing a ban notice).
type EnforcementOutcome struct {
	Username        string              `json:"username"`
	Decision        EnforcementDecision `json:"decision"`
	BanStrikeCount  int                 `json:"ban_strike_count"`
	IsPermanentBan  bool                `json:"is_permanent_ban"`
	IsGloballyMuted bool                `json:"is_globally_muted"`
	NewlyMuted      bool                `json:"newly_muted"`
}

// EscalationPolicy maps strike counts to decisions. Thresholds are
// inclusive lower bounds: strikes below RestrictAt warn, strikes from
// RestrictAt restrict, strikes from BanAt ban permanently.
type EscalationPolicy struct {
	RestrictAt int
	BanAt      int
}

func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{RestrictAt: 3, BanAt: 5}
}

func (p EscalationPolicy) Decide(strikes int) EnforcementDecision {
	switch {
	case strikes <= 0:
		return DecisionNoChange
	case strikes >= p.BanAt:
		return DecisionPermanentBan
	case strikes >= p.RestrictAt:
		return DecisionTemporaryRestriction
	default:
		return DecisionWarn
	}
}
