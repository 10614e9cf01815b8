package entitlement

import "time"

// Plan identifies the purchased entitlement plan.
type Plan string

const (
	// PlanOneTime is a perpetual authorization with a limited transfer budget.
	PlanOneTime Plan = "one_time"
	// PlanMonthly is a recurring authorization renewed per billing period.
	PlanMonthly Plan = "monthly"
)

// IsValid reports whether the plan is a known value.
func (p Plan) IsValid() bool {
	return p == PlanOneTime || p == PlanMonthly
}

// String returns the plan as a string.
func (p Plan) String() string { return string(p) }

// Decision is the outcome of an entitlement check for a guild.
type Decision string

const (
	// DecisionAllowed means the guild holds a paid authorization.
	DecisionAllowed Decision = "allowed"
	// DecisionTrialActive means the guild is inside its trial window.
	DecisionTrialActive Decision = "trial_active"
	// DecisionTrialExpired means the guild used its trial and it lapsed.
	DecisionTrialExpired Decision = "trial_expired"
	// DecisionTrialOffered means the guild has no record at all and may be
	// offered a trial.
	DecisionTrialOffered Decision = "trial_offered"
)

// Permits reports whether commands may execute under this decision.
func (d Decision) Permits() bool {
	return d == DecisionAllowed || d == DecisionTrialActive
}

// Decide computes the entitlement decision for a guild from its records.
// A paid authorization always wins, even over an expired trial. Pure function
// of its inputs; either record may be nil.
func Decide(auth *Authorization, trial *Trial, now time.Time) Decision {
	if auth != nil {
		return DecisionAllowed
	}
	if trial != nil {
		if trial.Expired(now) {
			return DecisionTrialExpired
		}
		return DecisionTrialActive
	}
	return DecisionTrialOffered
}
