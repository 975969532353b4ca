package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"milestonez/internal/model"
)

// FlexibleID accepts a JSON string or integer.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or integer: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id must be a string or integer: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

type GenerateMilestonesRequest struct {
	UserID             FlexibleID `json:"user_id" binding:"required"`
	ProjectID          FlexibleID `json:"project_id"`
	ProjectDescription string     `json:"project_description" binding:"required"`
	ModifyingPrompt    string     `json:"modifying_prompt"`
	TotalWeeks         int        `json:"total_weeks"`
	Evaluate           bool       `json:"evaluate"`
	Model              string     `json:"model"`
}

type UpdateMilestoneRequest struct {
	Index        int        `json:"index"`
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	Roles        []string   `json:"roles"`
	Deliverables []string   `json:"deliverables"`
	Time         int        `json:"time"`
	UserID       FlexibleID `json:"user_id" binding:"required"`
	ProjectID    FlexibleID `json:"project_id" binding:"required"`
}

func (r UpdateMilestoneRequest) milestone() model.Milestone {
	roles := r.Roles
	if roles == nil {
		roles = []string{}
	}
	deliverables := r.Deliverables
	if deliverables == nil {
		deliverables = []string{}
	}
	return model.Milestone{
		Index:        r.Index,
		Title:        r.Title,
		Description:  r.Description,
		Time:         r.Time,
		Roles:        roles,
		Deliverables: deliverables,
	}
}
