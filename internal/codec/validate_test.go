package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milestonez/internal/model"
)

func TestValidate_Rejects(t *testing.T) {
	base := model.Milestone{Index: 1, Title: "A", Description: "d", Time: 1, Roles: []string{"Design"}, Deliverables: []string{"x"}}

	tests := []struct {
		name   string
		mutate func(m *model.Milestone)
	}{
		{"title newline", func(m *model.Milestone) { m.Title = "A\nB" }},
		{"title duration marker", func(m *model.Milestone) { m.Title = "A | Duration: 2" }},
		{"title padded", func(m *model.Milestone) { m.Title = " A" }},
		{"description header", func(m *model.Milestone) { m.Description = "Duration | matters" }},
		{"description deliverables marker", func(m *model.Milestone) { m.Description = "Deliverables: none" }},
		{"description roles marker", func(m *model.Milestone) { m.Description = "Roles: all" }},
		{"description newline", func(m *model.Milestone) { m.Description = "a\nb" }},
		{"deliverable with separator", func(m *model.Milestone) { m.Deliverables = []string{"a, b"} }},
		{"empty deliverable", func(m *model.Milestone) { m.Deliverables = []string{""} }},
		{"role header", func(m *model.Milestone) { m.Roles = []string{"Duration|lead"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			tt.mutate(&m)
			assert.ErrorIs(t, Validate([]model.Milestone{m}), ErrReservedContent)

			_, err := Serialize([]model.Milestone{m})
			assert.ErrorIs(t, err, ErrReservedContent)
		})
	}
}

func TestSanitize_OutputValidates(t *testing.T) {
	dirty := []model.Milestone{
		{
			Index:        1,
			Title:        "  Setup | Duration: ASAP\n",
			Description:  "Roles: decided later.\nDuration | scope TBD",
			Time:         0,
			Roles:        []string{"Backend Developer, Frontend Developer", "", "  Design  "},
			Deliverables: []string{"Repo | Duration plan", "CI\npipeline"},
		},
	}

	clean := Sanitize(dirty)
	require.NoError(t, Validate(clean))

	m := clean[0]
	assert.Equal(t, "Setup / Duration: ASAP", m.Title)
	assert.Equal(t, "Roles - decided later. Duration / scope TBD", m.Description)
	assert.Equal(t, 1, m.Time)
	assert.Equal(t, []string{"Backend Developer; Frontend Developer", "Design"}, m.Roles)
	assert.Equal(t, []string{"Repo / Duration plan", "CI pipeline"}, m.Deliverables)

	text, err := Serialize(clean)
	require.NoError(t, err)
	back, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, clean, back)
}

func TestSanitize_LeavesCleanPlanAlone(t *testing.T) {
	plan := samplePlan()[:2]
	assert.Equal(t, plan, Sanitize(plan))
}
