package model

// Milestone is one step of a generated project plan.
// Index is assigned by the model in emission order and is not guaranteed unique.
type Milestone struct {
	Index        int      `json:"index"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Time         int      `json:"time"` // weeks
	Roles        []string `json:"roles"`
	Deliverables []string `json:"deliverables"`
}

// Plan is the structured output requested from the language model.
type Plan struct {
	Milestones []Milestone `json:"milestones"`
}

// MaxMilestones 展示时的里程碑数量上限
const MaxMilestones = 6

// RecommendedRoles lists the role tags the model is steered towards. Not enforced.
var RecommendedRoles = []string{
	"ML Developer",
	"NLP Developer",
	"Computer Vision Developer",
	"Frontend Developer",
	"Backend Developer",
	"Product",
	"IOT",
	"Finance",
	"Design",
}

// TableRow is the presentation shape returned to clients, with time
// redistributed over the requested number of weeks.
type TableRow struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Time         int      `json:"time"`
	Roles        []string `json:"roles"`
	Deliverables []string `json:"deliverables"`
}
