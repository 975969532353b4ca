package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milestonez/internal/model"
)

func samplePlan() []model.Milestone {
	return []model.Milestone{
		{
			Index:        1,
			Title:        "Requirements and data audit",
			Description:  "Collect labelled examples and define the evaluation protocol.",
			Time:         2,
			Roles:        []string{"ML Developer", "Product"},
			Deliverables: []string{"Dataset inventory", "Evaluation plan"},
		},
		{
			Index:        2,
			Title:        "Model prototype",
			Description:  "Fine-tune a baseline with transformers and report metrics.",
			Time:         3,
			Roles:        []string{"NLP Developer"},
			Deliverables: []string{"Baseline checkpoint"},
		},
		{
			Index:        3,
			Title:        "Serving API",
			Description:  "",
			Time:         1,
			Roles:        []string{},
			Deliverables: []string{},
		},
	}
}

func TestSerialize_Layout(t *testing.T) {
	text, err := Serialize(samplePlan()[:1])
	require.NoError(t, err)

	want := strings.Join([]string{
		"1. Requirements and data audit | Duration: 2",
		"Collect labelled examples and define the evaluation protocol.",
		"Deliverables: Dataset inventory, Evaluation plan",
		"Roles: ML Developer, Product",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestSerialize_Empty(t *testing.T) {
	text, err := Serialize(nil)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	plan, err := Parse(text)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestParse_RoundTrip(t *testing.T) {
	plan := samplePlan()

	text, err := Serialize(plan)
	require.NoError(t, err)

	got, err := Parse(text)
	require.NoError(t, err)

	if diff := cmp.Diff(plan, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_MultiLineDescription(t *testing.T) {
	text := strings.Join([]string{
		"4. Launch | Duration: 2",
		"  Ship the beta.",
		"Collect feedback.  ",
		"Deliverables: Release notes",
		"Roles: Product, Design",
	}, "\n")

	got, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, 4, got[0].Index)
	assert.Equal(t, "Launch", got[0].Title)
	assert.Equal(t, 2, got[0].Time)
	assert.Equal(t, "Ship the beta. Collect feedback.", got[0].Description)
	assert.Equal(t, []string{"Release notes"}, got[0].Deliverables)
	assert.Equal(t, []string{"Product", "Design"}, got[0].Roles)
}

func TestParse_LaterSectionOverwrites(t *testing.T) {
	text := "1. A | Duration: 1\nDeliverables: x\nDeliverables: y, z\nRoles: Finance"

	got, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"y", "z"}, got[0].Deliverables)
}

func TestParse_CRLF(t *testing.T) {
	text := "1. A | Duration: 1\r\nDesc\r\nDeliverables: x\r\nRoles: IOT"

	got, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Desc", got[0].Description)
	assert.Equal(t, []string{"IOT"}, got[0].Roles)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"content before header", "stray\n1. A | Duration: 1", 1},
		{"missing index separator", "1 A | Duration: 1", 1},
		{"missing duration separator", "1. A |Duration 1", 1},
		{"non-integer index", "one. A | Duration: 1", 1},
		{"non-integer duration", "1. A | Duration: soon", 1},
		{"second header broken", "1. A | Duration: 1\nDesc\n2. B | Duration: x", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPlanText))

			var mErr *MalformedPlanTextError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.line, mErr.Line)
		})
	}
}

func TestParse_LeadingBlankLinesSkipped(t *testing.T) {
	got, err := Parse("\n\n1. A | Duration: 2\nDesc\nDeliverables: d\nRoles: r")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
}

func TestPatchOne_Isolation(t *testing.T) {
	plan := samplePlan()
	text, err := Serialize(plan)
	require.NoError(t, err)

	patch := model.Milestone{
		Index:        2,
		Title:        "Model prototype v2",
		Description:  "Distil the baseline.",
		Time:         4,
		Roles:        []string{"ML Developer"},
		Deliverables: []string{"Distilled checkpoint", "Benchmark"},
	}

	patched, err := PatchOne(text, patch)
	require.NoError(t, err)

	before := strings.Split(text, "\n")
	after := strings.Split(patched, "\n")
	require.Len(t, after, len(before))

	// milestone 2 occupies lines 4..7
	assert.Equal(t, before[:4], after[:4])
	assert.Equal(t, before[8:], after[8:])
	assert.Equal(t, "2. Model prototype v2 | Duration: 4", after[4])
	assert.Equal(t, "Distil the baseline.", after[5])
	assert.Equal(t, "Deliverables: Distilled checkpoint, Benchmark", after[6])
	assert.Equal(t, "Roles: ML Developer", after[7])
}

func TestPatchOne_TargetNotFound(t *testing.T) {
	text, err := Serialize(samplePlan())
	require.NoError(t, err)

	_, err = PatchOne(text, model.Milestone{Index: 9, Title: "x", Time: 1})
	assert.ErrorIs(t, err, ErrPatchTargetNotFound)
}

func TestPatchOne_Ambiguous(t *testing.T) {
	plan := samplePlan()
	plan[2].Index = 2
	text, err := Serialize(plan)
	require.NoError(t, err)

	_, err = PatchOne(text, model.Milestone{Index: 2, Title: "x", Time: 1})
	assert.ErrorIs(t, err, ErrAmbiguousPatchTarget)
}

func TestPatchOne_RejectsReservedContent(t *testing.T) {
	text, err := Serialize(samplePlan())
	require.NoError(t, err)

	_, err = PatchOne(text, model.Milestone{Index: 1, Title: "A", Description: "Roles: everyone", Time: 1})
	assert.ErrorIs(t, err, ErrReservedContent)
}

func TestPatchOne_MalformedStoredText(t *testing.T) {
	_, err := PatchOne("not a plan", model.Milestone{Index: 1, Title: "A", Time: 1})
	assert.ErrorIs(t, err, ErrMalformedPlanText)
}
