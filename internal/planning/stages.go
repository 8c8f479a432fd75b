package planning

// StageID names a planning stage.
type StageID string

const (
	Staffing StageID = "staffing"
	Schedule StageID = "schedule"
	Critique StageID = "critique"
)

// Stage is one persona in the pipeline. Template is a prompt template name
// resolved through prompt.Load.
type Stage struct {
	ID        StageID `yaml:"id" json:"id"`
	Role      string  `yaml:"role" json:"role"`
	Goal      string  `yaml:"goal" json:"goal"`
	Backstory string  `yaml:"backstory" json:"backstory"`
	Template  string  `yaml:"template" json:"template"`
}

// DefaultStages returns staffing match, schedule synthesis and critique.
func DefaultStages() []Stage {
	return []Stage{
		{
			ID:   Staffing,
			Role: "Staffing Expert",
			Goal: "Match team member skills from resumes to backlog items based on semantic similarity and expertise.",
			Backstory: "You are an expert HR and technical recruiter with 15 years of experience. " +
				"You analyze resumes deeply, extracting not just explicit skills but also inferred capabilities from experience. " +
				"You match these to backlog items with precision, considering both technical skills and seniority levels. " +
				"You provide clear reasoning traces for each match.",
			Template: "staffing.md",
		},
		{
			ID:   Schedule,
			Role: "Sprint Scheduler",
			Goal: "Create an optimal sprint schedule assigning tasks to team members based on capacity, skills, and seniority.",
			Backstory: "You are a veteran Scrum Master with 20 years of experience managing agile teams. " +
				"You calculate capacity granularly, ensuring no one is overloaded. " +
				"You balance workload evenly and consider dependencies. " +
				"You always provide time estimates and risk assessments.",
			Template: "schedule.md",
		},
		{
			ID:   Critique,
			Role: "Guardrail Auditor",
			Goal: "Validate the sprint schedule for feasibility, logic, and absence of hallucinations.",
			Backstory: "You are a skeptical, detail-oriented auditor. " +
				"You review sprint plans with a critical eye, checking for impossible deadlines, skill mismatches, " +
				"capacity overloads, missing dependencies and hallucinated assignments that don't match the actual team. " +
				"You demand reasoning traces for every assignment and flag risks immediately.",
			Template: "critique.md",
		},
	}
}
