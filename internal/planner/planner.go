// Package planner asks a language model for a milestone plan and derives the
// text, table and fidelity views of it.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"milestonez/internal/codec"
	"milestonez/internal/llm"
	"milestonez/internal/model"
)

var (
	ErrNotGenerated     = errors.New("no plan generated yet")
	ErrAlreadyGenerated = errors.New("plan already generated")
	ErrEmptyPlan        = errors.New("model returned no milestones")
	ErrInvalidWeeks     = errors.New("total weeks must be at least 1")
)

// Brief is the project description a plan is generated from.
type Brief struct {
	Detailed   string
	Summarized string
	TotalWeeks int
}

type FidelityScorer interface {
	Score(ctx context.Context, a, b string) (float64, error)
}

// Planner produces one plan. It is not reusable across requests.
type Planner struct {
	completer llm.Completer
	scorer    FidelityScorer
	model     string
	brief     Brief

	mu    sync.Mutex
	plan  []model.Milestone
	done  bool
	usage llm.Usage
}

func New(completer llm.Completer, scorer FidelityScorer, modelName string, brief Brief) *Planner {
	return &Planner{
		completer: completer,
		scorer:    scorer,
		model:     modelName,
		brief:     brief,
	}
}

// Limit is the largest number of milestones requested from the model.
func (p *Planner) Limit() int {
	return min(model.MaxMilestones, p.brief.TotalWeeks)
}

func (p *Planner) Generate(ctx context.Context) ([]model.Milestone, error) {
	return p.run(ctx, generatePrompt(p.brief, p.Limit()))
}

// Regenerate asks the model to modify previous according to modifying.
func (p *Planner) Regenerate(ctx context.Context, previous, modifying string) ([]model.Milestone, error) {
	return p.run(ctx, regeneratePrompt(previous, modifying, p.Limit()))
}

func (p *Planner) run(ctx context.Context, prompt string) ([]model.Milestone, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return nil, ErrAlreadyGenerated
	}
	if p.brief.TotalWeeks < 1 {
		return nil, ErrInvalidWeeks
	}

	var out model.Plan
	usage, err := p.completer.CompleteJSON(ctx, p.model, prompt, llm.PlanSchema(p.Limit()), &out)
	p.usage.Add(usage)
	if err != nil {
		return nil, err
	}
	if len(out.Milestones) == 0 {
		return nil, ErrEmptyPlan
	}

	p.plan = codec.Sanitize(out.Milestones)
	p.done = true
	return clonePlan(p.plan), nil
}

// Plan returns a copy of the generated milestones, nil before generation.
func (p *Planner) Plan() []model.Milestone {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clonePlan(p.plan)
}

// Textify serializes the plan with the durations the model chose.
func (p *Planner) Textify() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done {
		return "", ErrNotGenerated
	}
	return codec.Serialize(p.plan)
}

// ToTable keeps at most min(6, totalWeeks) milestones and spreads totalWeeks
// over them: one week each, then the remainder round-robin from the first.
func (p *Planner) ToTable(totalWeeks int) ([]model.TableRow, error) {
	if totalWeeks < 1 {
		return nil, ErrInvalidWeeks
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done {
		return nil, ErrNotGenerated
	}

	n := min(len(p.plan), model.MaxMilestones, totalWeeks)
	if n == 0 {
		return []model.TableRow{}, nil
	}
	weeks := make([]int, n)
	for i := range weeks {
		weeks[i] = 1
	}
	for i := 0; i < totalWeeks-n; i++ {
		weeks[i%n]++
	}

	rows := make([]model.TableRow, n)
	for i, m := range p.plan[:n] {
		rows[i] = model.TableRow{
			Title:        m.Title,
			Description:  m.Description,
			Time:         weeks[i],
			Roles:        cloneStrings(m.Roles),
			Deliverables: cloneStrings(m.Deliverables),
		}
	}
	return rows, nil
}

// EvaluateFidelity scores the textified plan against the summarized
// description when useSummary is set, the detailed one otherwise.
func (p *Planner) EvaluateFidelity(ctx context.Context, useSummary bool) (float64, error) {
	text, err := p.Textify()
	if err != nil {
		return 0, err
	}
	ref := p.brief.Detailed
	if useSummary {
		ref = p.brief.Summarized
	}
	score, err := p.scorer.Score(ctx, text, ref)
	if err != nil {
		return 0, fmt.Errorf("evaluate fidelity: %w", err)
	}
	return score, nil
}

// Usage reports the token usage of this planner's model calls.
func (p *Planner) Usage() llm.Usage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usage
}

func clonePlan(plan []model.Milestone) []model.Milestone {
	if plan == nil {
		return nil
	}
	out := make([]model.Milestone, len(plan))
	for i, m := range plan {
		m.Roles = cloneStrings(m.Roles)
		m.Deliverables = cloneStrings(m.Deliverables)
		out[i] = m
	}
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
