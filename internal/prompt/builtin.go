package prompt

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	"interview.md": interviewTemplate,
	"staffing.md":  staffingTemplate,
	"schedule.md":  scheduleTemplate,
	"critique.md":  critiqueTemplate,
}

const interviewTemplate = `You are an expert Scrum Master conducting a discovery interview to gather PROJECT REQUIREMENTS ONLY.

IMPORTANT: Do NOT ask about the team members, their skills, or team composition.
Team information will be provided separately through resume uploads.
Focus ONLY on the PROJECT itself.
{{#if existing_context}}

EXISTING CONTEXT:
{{existing_context}}
{{/if}}

CONVERSATION SO FAR:
{{conversation}}

Your task:
1. Analyze what PROJECT information is still missing (deadlines, tech stack, project priorities, scope, constraints, etc.)
2. Generate ONE specific, focused question about the PROJECT to fill the most critical gap
3. Assess context completeness (0-100%): How much do we know about:
   - Project deadlines and timeline
   - Technical requirements and technology stack
   - Project priorities and scope
   - Resource limitations and constraints
   - Business requirements and objectives

DO NOT ask about:
- Team members or their skills
- Team composition or availability
- Individual capabilities

Respond in this EXACT format:
QUESTION: [your question here]
SUFFICIENCY_SCORE: [0-100]
READY_TO_PLAN: [true/false] (true if score >= {{ready_threshold}})

If READY_TO_PLAN is true, the question can be "All context gathered. Ready to generate sprint plan."
`

const staffingTemplate = `# Role: {{role}}

## Goal
{{goal}}

## Background
{{backstory}}

## Project Context and Team Resumes
{{combined_context}}

## Your Task
1. Extract all team member skills and seniority levels from the resumes
2. Extract all backlog items with their required skills and complexity
3. Match each backlog item to the best-suited team member(s) based on skills
4. Provide a reasoning trace for each match (e.g. "John assigned to T-101 because he has 5 years FastAPI experience")

Only use team members that appear in the resumes above. Never invent people or tickets.

## Output
A structured analysis mapping backlog items to potential assignees with reasoning.
`

const scheduleTemplate = `# Role: {{role}}

## Goal
{{goal}}

## Background
{{backstory}}

## Staffing Analysis (previous step)
{{previous_output}}

## Requirements
- Assign each backlog item to a specific team member
- Estimate hours for each task (consider complexity and seniority)
- Junior developers need {{seniority_multiplier}}x time for complex tasks
- Calculate total capacity per team member (assume {{hours_per_week}} hours/week, adjust for availability)
- Ensure no one is overloaded
- Include a risk assessment (Low/Medium/High) for each assignment

## Output
CRITICAL: Output MUST be a markdown table with exactly these columns:

| Task_ID | Assignee | Estimated_Hours | Risk_Level | Reasoning_Trace |
|---------|----------|-----------------|------------|-----------------|
| T-101   | John Doe | 8               | Low        | ...             |

One row per task assignment. This table format is essential for parsing and display.
`

const critiqueTemplate = `# Role: {{role}}

## Goal
{{goal}}

## Background
{{backstory}}

## Sprint Schedule (previous step)
{{previous_output}}

## Validate
1. Are all assignments feasible given team member skills?
2. Are time estimates realistic?
3. Is anyone overloaded (exceeding {{hours_per_week}} hours of capacity)?
4. Are there any hallucinations (assignments that do not match actual skills or people)?
5. Are dependencies considered?

## Output
A final validation report. Start with a line "STATUS: APPROVED" or "STATUS: FLAGGED",
then list every flagged issue or risk with the affected Task_ID.
`
