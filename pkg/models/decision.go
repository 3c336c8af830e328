package models

// DecisionStatus records the outcome of the one-to-one resolution for a
// scored pair. Rejected pairs are kept for audit, not discarded.
type DecisionStatus string

const (
	DecisionStatusAccepted       DecisionStatus = "accepted"
	DecisionStatusBelowThreshold DecisionStatus = "below_threshold"
	DecisionStatusMemberClaimed  DecisionStatus = "member_claimed"
)

// MatchDecision is a ScoredPair plus the binary match outcome and the rank
// it held in the greedy highest-confidence-first assignment.
type MatchDecision struct {
	ScoredPair
	IsMatch bool           `json:"is_match" db:"is_match"`
	Rank    int            `json:"rank" db:"rank"`
	Status  DecisionStatus `json:"status" db:"status"`
}
