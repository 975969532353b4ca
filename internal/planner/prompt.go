package planner

import "fmt"

func generatePrompt(b Brief, limit int) string {
	return fmt.Sprintf(`Generate up to %d technical milestones for the following project, including details like the job roles required, time to complete, and key deliverables for each milestone.

Detailed Description:
%s

Summarized Description:
%s
`, limit, b.Detailed, b.Summarized)
}

func regeneratePrompt(previous, modifying string, limit int) string {
	return fmt.Sprintf(`Previous Output:
%s

Modify the technical milestones for the project according to this query (keep at most %d milestones):
%s
`, previous, limit, modifying)
}

// SummaryPrompt asks for a short version of a project description.
func SummaryPrompt(description string) string {
	return "Summarize the following project description: " + description
}
