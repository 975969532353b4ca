package llm

import (
	"strconv"
	"strings"

	"milestonez/internal/model"
)

// Schema is the JSON-schema subset both providers accept for structured output.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

func object(props map[string]*Schema, required ...string) *Schema {
	closed := false
	return &Schema{Type: "object", Properties: props, Required: required, AdditionalProperties: &closed}
}

// PlanSchema is the structured shape of model.Plan.
func PlanSchema(maxMilestones int) *Schema {
	milestone := object(map[string]*Schema{
		"index": {Type: "integer", Description: "Milestone number"},
		"title": {Type: "string", Description: "Title of Project Milestone"},
		"description": {
			Type:        "string",
			Description: "Detailed and Meaningful Description of Milestone, exact details of what to do in this step of the process (include names of packages)",
		},
		"time": {Type: "integer", Description: "Number of weeks required for this milestone"},
		"roles": {
			Type:        "array",
			Description: "What team member roles might be relevant for this",
			Items:       &Schema{Type: "string", Description: "One of " + strings.Join(model.RecommendedRoles, ", ")},
		},
		"deliverables": {
			Type:        "array",
			Description: "List of deliverables for this milestone",
			Items:       &Schema{Type: "string"},
		},
	}, "index", "title", "description", "time", "roles", "deliverables")

	return object(map[string]*Schema{
		"milestones": {
			Type:        "array",
			Description: "Milestone details this project can be divided in (keep <=" + strconv.Itoa(maxMilestones) + ")",
			Items:       milestone,
		},
	}, "milestones")
}
