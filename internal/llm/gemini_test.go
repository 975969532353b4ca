package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"milestonez/internal/model"
)

type fakeGenai struct {
	text    string
	values  []float32
	lastCfg *genai.GenerateContentConfig
	model   string
}

func (f *fakeGenai) GenerateContent(_ context.Context, model string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.lastCfg = cfg
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: f.text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     4,
			CandidatesTokenCount: 6,
			TotalTokenCount:      10,
		},
	}, nil
}

func (f *fakeGenai) EmbedContent(_ context.Context, model string, _ []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.model = model
	return &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: f.values}},
	}, nil
}

func TestGemini_CompleteJSON(t *testing.T) {
	fake := &fakeGenai{text: `{"milestones":[{"index":1,"title":"A","description":"","time":1,"roles":[],"deliverables":[]}]}`}
	c := newGeminiClient(fake, GeminiConfig{Models: Models{"GPT 4o": "gemini-2.5-flash"}})

	name, err := c.Resolve("GPT 4o")
	require.NoError(t, err)

	var plan model.Plan
	usage, err := c.CompleteJSON(context.Background(), name, "plan", PlanSchema(4), &plan)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", fake.model)
	assert.Equal(t, "application/json", fake.lastCfg.ResponseMIMEType)
	require.NotNil(t, fake.lastCfg.ResponseSchema)
	assert.Equal(t, genai.TypeObject, fake.lastCfg.ResponseSchema.Type)
	assert.Equal(t, genai.TypeArray, fake.lastCfg.ResponseSchema.Properties["milestones"].Type)
	assert.Equal(t, Usage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10, Requests: 1}, usage)
	require.Len(t, plan.Milestones, 1)
}

func TestGemini_Embed(t *testing.T) {
	fake := &fakeGenai{values: []float32{0.5, -1}}
	c := newGeminiClient(fake, GeminiConfig{})

	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1}, vec)
	assert.Equal(t, "gemini-embedding-001", fake.model)
}

func TestGemini_EmptyText(t *testing.T) {
	c := newGeminiClient(&fakeGenai{text: "  "}, GeminiConfig{})
	_, _, err := c.Complete(context.Background(), "m", "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestToGenaiSchema_Nested(t *testing.T) {
	s := toGenaiSchema(PlanSchema(6))
	items := s.Properties["milestones"].Items
	require.NotNil(t, items)
	assert.Equal(t, genai.TypeInteger, items.Properties["time"].Type)
	assert.Equal(t, genai.TypeString, items.Properties["roles"].Items.Type)
	assert.ElementsMatch(t, []string{"index", "title", "description", "time", "roles", "deliverables"}, items.Required)
}
