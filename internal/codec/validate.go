package codec

import (
	"fmt"
	"strings"

	"milestonez/internal/model"
)

// Validate reports the first field that Parse could not read back verbatim.
func Validate(plan []model.Milestone) error {
	for _, m := range plan {
		if err := validateMilestone(m); err != nil {
			return err
		}
	}
	return nil
}

func validateMilestone(m model.Milestone) error {
	bad := func(field, why string) error {
		return fmt.Errorf("%w: milestone %d %s %s", ErrReservedContent, m.Index, field, why)
	}

	if err := singleLine(m.Title); err != "" {
		return bad("title", err)
	}
	if strings.Contains(m.Title, strings.TrimSpace(durationSep)) {
		return bad("title", "contains the duration marker")
	}

	if err := singleLine(m.Description); err != "" {
		return bad("description", err)
	}
	if isHeader(m.Description) {
		return bad("description", "looks like a milestone header")
	}
	if strings.HasPrefix(m.Description, deliverablesMark) || strings.HasPrefix(m.Description, rolesMark) {
		return bad("description", "starts with a section marker")
	}

	if err := validateList(m.Deliverables, deliverablesMark); err != "" {
		return bad("deliverables", err)
	}
	if err := validateList(m.Roles, rolesMark); err != "" {
		return bad("roles", err)
	}
	return nil
}

func singleLine(s string) string {
	if strings.ContainsAny(s, "\r\n") {
		return "spans multiple lines"
	}
	if s != strings.TrimSpace(s) {
		return "has leading or trailing whitespace"
	}
	return ""
}

func validateList(items []string, mark string) string {
	for _, item := range items {
		if item == "" {
			return "contains an empty item"
		}
		if err := singleLine(item); err != "" {
			return err
		}
		if strings.Contains(item, listSep) {
			return "item contains the list separator"
		}
	}
	if isHeader(mark + " " + strings.Join(items, listSep)) {
		return "looks like a milestone header"
	}
	return ""
}

// Sanitize rewrites model output so that it always passes Validate.
// Milestones with a non-positive time get one week.
func Sanitize(plan []model.Milestone) []model.Milestone {
	out := make([]model.Milestone, len(plan))
	for i, m := range plan {
		m.Title = strings.ReplaceAll(flatten(m.Title), "|", "/")

		desc := flatten(m.Description)
		if isHeader(desc) {
			desc = strings.ReplaceAll(desc, "|", "/")
		}
		for _, mark := range []string{deliverablesMark, rolesMark} {
			if strings.HasPrefix(desc, mark) {
				desc = strings.TrimSuffix(mark, ":") + " -" + strings.TrimPrefix(desc, mark)
			}
		}
		m.Description = desc

		m.Deliverables = sanitizeList(m.Deliverables)
		m.Roles = sanitizeList(m.Roles)

		if m.Time < 1 {
			m.Time = 1
		}
		out[i] = m
	}
	return out
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ReplaceAll(flatten(item), listSep, "; ")
		item = strings.ReplaceAll(item, "|", "/")
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
