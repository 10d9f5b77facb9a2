package extract

import (
	"context"
	"regexp"
	"strings"
)

const (
	weekday  = `(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)`
	month    = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	count    = `(?:\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|a few|few|several|a couple of|couple of)`
	timeUnit = `(?:minutes?|hours?|days?|weeks?|months?|years?)`
)

type entityRule struct {
	label string
	re    *regexp.Regexp
}

// Earlier rules claim their spans first, so a number inside a duration is
// not reported again as a cardinal.
var defaultEntityRules = []entityRule{
	{"DURATION", regexp.MustCompile(`(?i)\b(?:for|over|past|last|since)\s+(?:the\s+)?(?:past\s+|last\s+)?` + count + `\s+` + timeUnit + `\b`)},
	{"DURATION", regexp.MustCompile(`(?i)\b` + count + `\s+` + timeUnit + `\s+(?:ago|now)\b`)},
	{"AGE", regexp.MustCompile(`(?i)\b\d{1,3}[- ]?(?:years?|yrs?)[- ]old\b`)},
	{"QUANTITY", regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:degrees?(?:\s+(?:celsius|fahrenheit|c|f))?|kg|kgs|lbs?|mg|ml)\b`)},
	{"DATE", regexp.MustCompile(`(?i)\b(?:yesterday|today|tomorrow|` +
		`(?:last|this|next|on)\s+(?:week|month|year|weekend|` + weekday + `)|` +
		weekday + `|` +
		month + `\s+\d{1,2}(?:st|nd|rd|th)?|` +
		`\d{1,2}/\d{1,2}(?:/\d{2,4})?|\d{4}-\d{2}-\d{2})\b`)},
	{"TIME", regexp.MustCompile(`(?i)\b(?:\d{1,2}(?::\d{2})?\s?(?:am|pm)|\d{1,2}:\d{2}|` +
		`(?:this|last|every|since|at)\s+(?:morning|afternoon|evening|night|midnight|noon)|tonight)\b`)},
	{"CARDINAL", regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)},
}

// RuleRecognizer labels entity mentions with regular expressions.
// When a label matches more than once the last mention wins.
type RuleRecognizer struct {
	rules []entityRule
}

// NewRuleRecognizer creates a recognizer with the built-in rules
func NewRuleRecognizer() *RuleRecognizer {
	return &RuleRecognizer{rules: defaultEntityRules}
}

// Name returns the recognizer name
func (r *RuleRecognizer) Name() string {
	return "rules"
}

// Recognize returns label -> mention for every rule that matched
func (r *RuleRecognizer) Recognize(ctx context.Context, text string) (map[string]string, error) {
	entities := make(map[string]string)
	var claimed [][2]int

	for _, rule := range r.rules {
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			if overlapsAny(claimed, loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})
			entities[rule.label] = strings.TrimSpace(text[loc[0]:loc[1]])
		}
	}
	return entities, nil
}

func overlapsAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}
