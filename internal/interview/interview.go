// Package interview runs the adaptive discovery interview: one oracle call
// per turn producing the next question and a sufficiency estimate.
package interview

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/lucasnoah/sprintfactory/internal/oracle"
	"github.com/lucasnoah/sprintfactory/internal/prompt"
)

const (
	// DefaultQuestion replaces a missing or empty QUESTION line.
	DefaultQuestion = "Could you tell me more about the project timeline and deadlines?"
	// FallbackQuestion is asked when the oracle call itself fails.
	FallbackQuestion = "What are the key deadlines and priorities for this sprint?"
	// FallbackScore accompanies FallbackQuestion.
	FallbackScore = 30
	// DefaultReadyThreshold is the score at which planning unlocks.
	DefaultReadyThreshold = 80
	// TemplateName is the prompt template used for each turn.
	TemplateName = "interview.md"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation log.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is the outcome of one interview step.
type Turn struct {
	Question         string `json:"question"`
	SufficiencyScore int    `json:"sufficiency_score"`
	ReadyToPlan      bool   `json:"ready_to_plan"`
	Fallback         bool   `json:"fallback,omitempty"` // oracle failed; canned turn returned
}

// FallbackTurn is returned whenever the oracle cannot produce a reply.
func FallbackTurn() Turn {
	return Turn{Question: FallbackQuestion, SufficiencyScore: FallbackScore, ReadyToPlan: false, Fallback: true}
}

// Loop generates interview turns.
type Loop struct {
	oracle    oracle.Oracle
	threshold int
	template  string
	logger    *log.Logger
}

// NewLoop creates a loop with the built-in template. A threshold outside
// [0,100] falls back to DefaultReadyThreshold.
func NewLoop(o oracle.Oracle, threshold int) *Loop {
	if threshold < 0 || threshold > 100 {
		threshold = DefaultReadyThreshold
	}
	tmpl, _ := prompt.Builtin(TemplateName)
	return &Loop{
		oracle:    o,
		threshold: threshold,
		template:  tmpl,
		logger:    log.New(io.Discard, "", 0),
	}
}

// SetTemplate overrides the prompt template.
func (l *Loop) SetTemplate(tmpl string) {
	l.template = tmpl
}

// SetLogger sets the logger used to report oracle failures.
func (l *Loop) SetLogger(logger *log.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Threshold returns the readiness threshold.
func (l *Loop) Threshold() int {
	return l.threshold
}

// Prompt renders the instruction for the next turn.
func (l *Loop) Prompt(history []Message, existingContext string) (string, error) {
	return prompt.Render(l.template, prompt.Vars{
		"existing_context": strings.TrimSpace(existingContext),
		"conversation":     RenderHistory(history),
		"ready_threshold":  strconv.Itoa(l.threshold),
	})
}

// NextTurn asks the oracle for the next question. It never fails: oracle
// errors and empty replies yield FallbackTurn, and missing fields in the reply
// take their per-field defaults.
func (l *Loop) NextTurn(ctx context.Context, history []Message, existingContext string) Turn {
	p, err := l.Prompt(history, existingContext)
	if err != nil {
		l.logger.Printf("render interview prompt: %v", err)
		return FallbackTurn()
	}

	reply, err := l.oracle.Invoke(ctx, p)
	if err != nil {
		l.logger.Printf("interview oracle call failed: %v", err)
		return FallbackTurn()
	}
	if strings.TrimSpace(reply) == "" {
		l.logger.Printf("interview oracle call failed: %v", oracle.ErrEmptyResponse)
		return FallbackTurn()
	}

	return ParseReply(reply).Turn(l.threshold)
}

// RenderHistory formats the conversation as "ROLE: content" lines.
func RenderHistory(history []Message) string {
	var sb strings.Builder
	for _, m := range history {
		role := m.Role
		if role == "" {
			role = RoleUser
		}
		fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(role), m.Content)
	}
	return sb.String()
}
