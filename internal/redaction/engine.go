// Package redaction scrubs sensitive substrings out of free text before it is
// persisted or handed to a language model. Detection is pattern based and
// best effort.
package redaction

import (
	"regexp"
	"sort"
	"strings"
)

type Category string

const (
	Email      Category = "EMAIL"
	Phone      Category = "PHONE"
	SSN        Category = "SSN"
	CreditCard Category = "CREDIT_CARD"
	IPAddress  Category = "IP_ADDRESS"
	APIKey     Category = "API_KEY"
	Password   Category = "PASSWORD"
	Token      Category = "TOKEN"
)

// Finding is one detected occurrence. Start is the byte offset of Value in
// the text the rule was matched against.
type Finding struct {
	Category Category
	Value    string
	Start    int
}

type rule struct {
	category Category
	re       *regexp.Regexp
}

// Rules run independently against the same input. Overlapping matches collapse
// into one placeholder named after the later rule in this list.
var defaultRules = []rule{
	{Email, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{Phone, regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)},
	{SSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{CreditCard, regexp.MustCompile(`\b\d{4}[-.\s]?\d{4}[-.\s]?\d{4}[-.\s]?\d{4}\b`)},
	{IPAddress, regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
	{APIKey, regexp.MustCompile(`[Aa][Pp][Ii][_-]?[Kk][Ee][Yy][:\s=]+[\w\-]{20,}`)},
	{Password, regexp.MustCompile(`[Pp]assword[:\s=]+[\w\-!@#$%^&*()]{6,}`)},
	{Token, regexp.MustCompile(`[Tt]oken[:\s=]+[\w\-]{20,}`)},
}

// maxPasses bounds the fixpoint loop in Redact. Placeholders never match any
// rule, so real inputs settle after one or two passes.
const maxPasses = 8

type Engine struct {
	rules []rule
}

func New() *Engine {
	return &Engine{rules: defaultRules}
}

// Placeholder returns the token that replaces a value of the given category.
func Placeholder(c Category) string {
	return "[REDACTED_" + string(c) + "]"
}

// Redact replaces every match with its category placeholder and reports what
// was found. Every other occurrence of a matched value is replaced too, even
// where the pattern itself would not match. Text without matches comes back
// unchanged with no findings.
//
// Rules are reapplied until a pass finds nothing, so redacting the output a
// second time is a no-op.
func (e *Engine) Redact(text string) (string, []Finding) {
	var findings []Finding
	for pass := 0; pass < maxPasses; pass++ {
		var found []Finding
		text, found = e.apply(text)
		if len(found) == 0 {
			break
		}
		findings = append(findings, found...)
	}
	return text, findings
}

func (e *Engine) apply(text string) (string, []Finding) {
	var (
		findings []Finding
		spans    []span
	)
	for rank, r := range e.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{Category: r.category, Value: text[loc[0]:loc[1]], Start: loc[0]})
			spans = append(spans, span{start: loc[0], end: loc[1], rank: rank})
		}
	}
	if len(findings) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, m := range mergeSpans(spans) {
		b.WriteString(text[pos:m.start])
		b.WriteString(Placeholder(e.rules[m.rank].category))
		pos = m.end
	}
	b.WriteString(text[pos:])
	out := b.String()

	// A value also occurs where its pattern did not match, e.g. inside a
	// longer word. Longest first so a value is not cut by one it contains.
	values := make(map[string]int, len(findings))
	for i, f := range findings {
		values[f.Value] = max(values[f.Value], spans[i].rank)
	}
	ordered := make([]string, 0, len(values))
	for v := range values {
		ordered = append(ordered, v)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})
	for _, v := range ordered {
		out = strings.ReplaceAll(out, v, Placeholder(e.rules[values[v]].category))
	}
	return out, findings
}

type span struct {
	start, end int
	rank       int
}

// mergeSpans joins overlapping spans into one region per overlap group,
// labelled with the latest rule that took part.
func mergeSpans(spans []span) []span {
	sorted := append([]span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	var merged []span
	for _, s := range sorted {
		if n := len(merged); n > 0 && s.start < merged[n-1].end {
			last := &merged[n-1]
			last.end = max(last.end, s.end)
			last.rank = max(last.rank, s.rank)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// CheckSensitivity reports whether any rule matches without rewriting text.
func (e *Engine) CheckSensitivity(text string) bool {
	for _, r := range e.rules {
		if r.re.MatchString(text) {
			return true
		}
	}
	return false
}

// Categories returns the distinct categories present in findings, in the
// order they were first seen. Used for logging without exposing values.
func Categories(findings []Finding) []Category {
	seen := make(map[Category]bool, len(findings))
	var out []Category
	for _, f := range findings {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	return out
}
