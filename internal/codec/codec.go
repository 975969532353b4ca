// Package codec converts milestone plans to and from the plain-text layout
// stored in history records and re-fed to the model on modification requests:
//
//	1. Title | Duration: 3
//	Description on its own line
//	Deliverables: a, b
//	Roles: Backend Developer, Design
//
// The layout uses in-band markers, so free text containing them cannot be
// represented. Validate reports such content and Sanitize rewrites it.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"milestonez/internal/model"
)

const (
	durationSep      = " | Duration: "
	indexSep         = ". "
	deliverablesMark = "Deliverables:"
	rolesMark        = "Roles:"
	listSep          = ", "
)

var (
	ErrMalformedPlanText    = errors.New("malformed plan text")
	ErrPatchTargetNotFound  = errors.New("patch target milestone not found")
	ErrAmbiguousPatchTarget = errors.New("patch target milestone index is not unique")
	ErrReservedContent      = errors.New("milestone contains reserved plan-text markers")
)

// MalformedPlanTextError points at the line Parse could not interpret.
type MalformedPlanTextError struct {
	Line   int // 1-based
	Text   string
	Reason string
}

func (e *MalformedPlanTextError) Error() string {
	return fmt.Sprintf("malformed plan text at line %d (%s): %q", e.Line, e.Reason, e.Text)
}

func (e *MalformedPlanTextError) Unwrap() error { return ErrMalformedPlanText }

// Serialize renders the plan in order. Milestones that would not survive a
// Parse are rejected with ErrReservedContent.
func Serialize(plan []model.Milestone) (string, error) {
	if err := Validate(plan); err != nil {
		return "", err
	}

	lines := make([]string, 0, len(plan)*4)
	for _, m := range plan {
		lines = append(lines, block(m)...)
	}
	return strings.Join(lines, "\n"), nil
}

func block(m model.Milestone) []string {
	return []string{
		fmt.Sprintf("%d%s%s%s%d", m.Index, indexSep, m.Title, durationSep, m.Time),
		strings.TrimSpace(m.Description),
		deliverablesMark + " " + strings.Join(m.Deliverables, listSep),
		rolesMark + " " + strings.Join(m.Roles, listSep),
	}
}

func isHeader(line string) bool {
	return strings.Contains(line, "|") && strings.Contains(line, "Duration")
}

// Parse scans text line by line and rebuilds the milestones.
func Parse(text string) ([]model.Milestone, error) {
	var (
		out     []model.Milestone
		current *model.Milestone
		desc    []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(strings.Join(desc, " "))
		out = append(out, *current)
		current = nil
		desc = nil
	}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case isHeader(line):
			m, err := parseHeader(i+1, line)
			if err != nil {
				return nil, err
			}
			flush()
			current = &m
		case current == nil:
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, &MalformedPlanTextError{Line: i + 1, Text: line, Reason: "content before first milestone header"}
		case strings.HasPrefix(line, deliverablesMark):
			current.Deliverables = splitList(line)
		case strings.HasPrefix(line, rolesMark):
			current.Roles = splitList(line)
		default:
			desc = append(desc, strings.TrimSpace(line))
		}
	}
	flush()

	return out, nil
}

func parseHeader(lineNo int, line string) (model.Milestone, error) {
	idx, rest, ok := strings.Cut(line, indexSep)
	if !ok {
		return model.Milestone{}, &MalformedPlanTextError{Line: lineNo, Text: line, Reason: "missing index separator"}
	}
	title, duration, ok := strings.Cut(rest, durationSep)
	if !ok {
		return model.Milestone{}, &MalformedPlanTextError{Line: lineNo, Text: line, Reason: "missing duration separator"}
	}
	index, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		return model.Milestone{}, &MalformedPlanTextError{Line: lineNo, Text: line, Reason: "index is not an integer"}
	}
	weeks, err := strconv.Atoi(strings.TrimSpace(duration))
	if err != nil {
		return model.Milestone{}, &MalformedPlanTextError{Line: lineNo, Text: line, Reason: "duration is not an integer"}
	}
	return model.Milestone{
		Index: index,
		Title: strings.TrimSpace(title),
		Time:  weeks,
	}, nil
}

func splitList(line string) []string {
	_, rest, _ := strings.Cut(line, ":")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return []string{}
	}
	return strings.Split(rest, listSep)
}

// PatchOne replaces the milestone whose index equals patch.Index and
// re-serializes the plan. Other milestones keep their exact text.
func PatchOne(text string, patch model.Milestone) (string, error) {
	if err := validateMilestone(patch); err != nil {
		return "", err
	}

	plan, err := Parse(text)
	if err != nil {
		return "", err
	}

	target := -1
	for i := range plan {
		if plan[i].Index != patch.Index {
			continue
		}
		if target >= 0 {
			return "", fmt.Errorf("%w: index %d", ErrAmbiguousPatchTarget, patch.Index)
		}
		target = i
	}
	if target < 0 {
		return "", fmt.Errorf("%w: index %d", ErrPatchTargetNotFound, patch.Index)
	}

	plan[target].Title = patch.Title
	plan[target].Description = patch.Description
	plan[target].Roles = patch.Roles
	plan[target].Deliverables = patch.Deliverables
	plan[target].Time = patch.Time

	return Serialize(plan)
}
