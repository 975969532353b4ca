package mq

import "time"

// Routing keys on the milestonez.events exchange.
const (
	RoutingKeyPlanGenerated    = "plan.generated"
	RoutingKeyMilestoneUpdated = "milestone.updated"
)

// PlanGeneratedPayload is published after a generated or regenerated plan
// has been persisted.
type PlanGeneratedPayload struct {
	HistoryID      string    `json:"history_id"`
	UserID         string    `json:"user_id"`
	ProjectID      string    `json:"project_id"`
	Mode           string    `json:"mode"` // generate / regenerate
	Model          string    `json:"model"`
	MilestoneCount int       `json:"milestone_count"`
	FidelityScore  float64   `json:"fidelity_score"`
	TraceID        string    `json:"trace_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MilestoneUpdatedPayload is published after a single milestone was patched.
type MilestoneUpdatedPayload struct {
	HistoryID      string    `json:"history_id"`
	UserID         string    `json:"user_id"`
	ProjectID      string    `json:"project_id"`
	MilestoneIndex int       `json:"milestone_index"`
	TraceID        string    `json:"trace_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
