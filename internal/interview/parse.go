package interview

import (
	"regexp"
	"strconv"
	"strings"
)

// Tag names of the three reply lines.
const (
	TagQuestion = "QUESTION"
	TagScore    = "SUFFICIENCY_SCORE"
	TagReady    = "READY_TO_PLAN"
)

// replyLineRe matches one tagged line. Leading bullets, quote markers and
// markdown bold around the tag are tolerated; the tag itself is case-insensitive
// and may use spaces instead of underscores.
var replyLineRe = regexp.MustCompile(
	`(?im)^[ \t>*\-]*(?P<tag>question|sufficiency[_ ]score|ready[_ ]to[_ ]plan)[ \t*]*:(?P<value>.*)$`,
)

var leadingIntRe = regexp.MustCompile(`^[-+]?\d+`)

// Reply is the raw result of parsing an oracle answer. The Has* fields
// record whether the tag was present with a usable value.
type Reply struct {
	Question    string
	HasQuestion bool
	Score       int
	HasScore    bool
	Ready       bool
	HasReady    bool
}

// ParseReply extracts the three tagged lines from text. The first usable
// occurrence of each tag wins; anything unparseable is left unset.
func ParseReply(text string) Reply {
	var r Reply
	tagIdx := replyLineRe.SubexpIndex("tag")
	valIdx := replyLineRe.SubexpIndex("value")

	for _, m := range replyLineRe.FindAllStringSubmatch(text, -1) {
		tag := canonicalTag(m[tagIdx])
		value := strings.Trim(m[valIdx], " \t\r*")

		switch tag {
		case TagQuestion:
			if !r.HasQuestion && value != "" {
				r.Question, r.HasQuestion = value, true
			}
		case TagScore:
			if r.HasScore {
				continue
			}
			if n, ok := parseScore(value); ok {
				r.Score, r.HasScore = n, true
			}
		case TagReady:
			if r.HasReady {
				continue
			}
			if b, ok := parseFlag(value); ok {
				r.Ready, r.HasReady = b, true
			}
		}
	}
	return r
}

// Turn applies the per-field fallbacks and the readiness rule: ready when the
// flag says so or the clamped score reaches threshold.
func (r Reply) Turn(threshold int) Turn {
	t := Turn{Question: DefaultQuestion}
	if r.HasQuestion {
		t.Question = r.Question
	}
	if r.HasScore {
		t.SufficiencyScore = Clamp(r.Score)
	}
	t.ReadyToPlan = (r.HasReady && r.Ready) || t.SufficiencyScore >= threshold
	return t
}

// Clamp bounds a score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func canonicalTag(raw string) string {
	t := strings.ToUpper(strings.ReplaceAll(raw, " ", "_"))
	return t
}

// parseScore reads the leading integer token, so "85", "85%" and "85/100" all give 85.
func parseScore(value string) (int, bool) {
	tok := leadingIntRe.FindString(strings.TrimSpace(value))
	if tok == "" {
		return 0, false
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		// out of int range; treat the sign as the intent
		if strings.HasPrefix(tok, "-") {
			return -1, true
		}
		return 101, true
	}
	return n, true
}

// parseFlag reads the first word: true/yes are true, false/no are false.
func parseFlag(value string) (bool, bool) {
	fields := strings.Fields(strings.ToLower(value))
	if len(fields) == 0 {
		return false, false
	}
	switch strings.Trim(fields[0], ".,;:!()[]\"'`") {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}
