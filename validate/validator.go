// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

// Package validate scores generated responses with an ordered list of
// heuristic rules. Rules only annotate; content is never deleted or
// rewritten, so the caller always receives the provider's full answer
// plus a confidence report.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/unigate/unigate/providers"
)

// Confidence scoring constants
const (
	// BaseConfidence is the starting score before any rule applies.
	BaseConfidence = 1.0

	// ValidThreshold is the confidence at or above which a response is
	// considered valid.
	ValidThreshold = 0.5

	// MinResponseLength is the length below which a response cannot be
	// a meaningful answer.
	MinResponseLength = 20
)

// Report is the outcome of running all rules over one response.
type Report struct {
	IsValid     bool     `json:"is_valid"`
	Confidence  float64  `json:"confidence"`
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Input carries the response and the context it was produced under.
type Input struct {
	Text         string
	QueryContext string
	Domain       providers.Domain
}

// Rule inspects a response and adjusts the running report. Penalty is
// subtracted from the confidence; a rule that finds nothing returns 0.
type Rule interface {
	Name() string
	Apply(in Input, report *Report) (penalty float64)
}

// Validator runs an ordered rule list.
type Validator struct {
	rules []Rule
}

// New returns a validator with the default rule set.
func New() *Validator {
	return &Validator{rules: defaultRules()}
}

// NewWithRules returns a validator with a caller-supplied rule list.
func NewWithRules(rules []Rule) *Validator {
	return &Validator{rules: rules}
}

// AddRule appends a rule to the end of the list.
func (v *Validator) AddRule(r Rule) {
	v.rules = append(v.rules, r)
}

// Check runs every rule in order and returns the report. Confidence is
// clamped to [0, 1]; IsValid holds iff confidence >= ValidThreshold.
func (v *Validator) Check(text, queryContext string, domain providers.Domain) Report {
	report := Report{Confidence: BaseConfidence}
	in := Input{Text: text, QueryContext: queryContext, Domain: domain}

	for _, rule := range v.rules {
		report.Confidence -= rule.Apply(in, &report)
	}
	if report.Confidence < 0 {
		report.Confidence = 0
	}
	if report.Confidence > 1 {
		report.Confidence = 1
	}
	report.IsValid = report.Confidence >= ValidThreshold
	return report
}

// Annotate decorates a response according to its report. The original
// text is always preserved in full: low confidence prepends a warning
// sentinel, sensitive domains append a disclaimer block.
func Annotate(text string, report Report, domain providers.Domain) string {
	out := text
	if !report.IsValid {
		out = "⚠️ This response may contain inaccuracies. Please verify independently.\n\n" + out
	}
	if disclaimer, ok := domainDisclaimers[domain]; ok {
		out = out + "\n\n---\n" + disclaimer
	}
	return out
}

// domainDisclaimers maps sensitive domains to their appended notice.
var domainDisclaimers = map[providers.Domain]string{
	providers.DomainMedical:     "This information is for educational purposes and is not a substitute for professional medical advice.",
	providers.DomainStock:       "This information is not financial advice. Markets involve risk; consult a qualified advisor before investing.",
	providers.DomainCryptoPrice: "This information is not financial advice. Cryptocurrency prices are volatile; invest responsibly.",
	providers.DomainMarket:      "This information is not financial advice. Markets involve risk; consult a qualified advisor before investing.",
}

func defaultRules() []Rule {
	return []Rule{
		minLengthRule{},
		lowConfidenceMarkerRule{},
		vagueOpeningRule{},
		coherenceRule{},
		unsourcedNumberRule{},
		futureDateRule{year: func() int { return time.Now().Year() }},
		politicalClaimRule{},
		missingDisclaimerRule{},
		contradictionRule{},
		repetitionRule{},
	}
}

// minLengthRule fails responses too short to be a meaningful answer.
type minLengthRule struct{}

func (minLengthRule) Name() string { return "min_length" }

func (minLengthRule) Apply(in Input, report *Report) float64 {
	if len(strings.TrimSpace(in.Text)) >= MinResponseLength {
		return 0
	}
	report.Warnings = append(report.Warnings, "response is too short to be a complete answer")
	report.Suggestions = append(report.Suggestions, "retry with a broader query or a different provider")
	// Hard fail: below threshold on its own.
	return 0.6
}

// lowConfidenceMarkerRule penalizes hedging phrases that usually
// signal the model is guessing.
type lowConfidenceMarkerRule struct{}

var lowConfidenceMarkers = []string{
	"i'm not sure",
	"i am not sure",
	"i don't know",
	"i do not know",
	"i cannot verify",
	"as an ai",
	"no estoy seguro",
	"no lo sé",
}

func (lowConfidenceMarkerRule) Name() string { return "low_confidence_markers" }

func (lowConfidenceMarkerRule) Apply(in Input, report *Report) float64 {
	lower := strings.ToLower(in.Text)
	for _, marker := range lowConfidenceMarkers {
		if strings.Contains(lower, marker) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("response hedges with %q", marker))
			return 0.2
		}
	}
	return 0
}

// vagueOpeningRule penalizes boilerplate openings that delay the
// actual answer.
type vagueOpeningRule struct{}

var vagueOpenings = []string{
	"it depends",
	"that's a great question",
	"there are many factors",
	"well, it's complicated",
	"es una gran pregunta",
	"depende de",
}

func (vagueOpeningRule) Name() string { return "vague_opening" }

func (vagueOpeningRule) Apply(in Input, report *Report) float64 {
	lower := strings.ToLower(strings.TrimSpace(in.Text))
	for _, opening := range vagueOpenings {
		if strings.HasPrefix(lower, opening) {
			report.Warnings = append(report.Warnings, "response opens with filler instead of an answer")
			return 0.1
		}
	}
	return 0
}

// coherenceRule checks lexical overlap between the response and the
// source context it was supposedly grounded on. No context means
// nothing to compare, so the rule is a no-op.
type coherenceRule struct{}

func (coherenceRule) Name() string { return "context_coherence" }

func (coherenceRule) Apply(in Input, report *Report) float64 {
	if strings.TrimSpace(in.QueryContext) == "" {
		return 0
	}
	contextWords := significantWords(in.QueryContext)
	if len(contextWords) < 5 {
		return 0
	}
	responseWords := significantWords(in.Text)
	seen := make(map[string]bool, len(responseWords))
	for _, w := range responseWords {
		seen[w] = true
	}
	overlap := 0
	for _, w := range contextWords {
		if seen[w] {
			overlap++
		}
	}
	ratio := float64(overlap) / float64(len(contextWords))
	if ratio >= 0.1 {
		return 0
	}
	report.Warnings = append(report.Warnings, "response shares almost no vocabulary with the retrieved context")
	report.Suggestions = append(report.Suggestions, "check that the answer is grounded in the fetched data")
	return 0.25
}

var wordPattern = regexp.MustCompile(`[a-záéíóúñü]{4,}`)

func significantWords(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// unsourcedNumberRule flags precise statistics that appear without any
// attribution phrase nearby.
type unsourcedNumberRule struct{}

var (
	statPattern        = regexp.MustCompile(`\b\d+(?:\.\d+)?%|\$\d[\d,]*(?:\.\d+)?\b`)
	attributionPattern = regexp.MustCompile(`(?i)according to|source|reported|as of|per |study|según|fuente`)
)

func (unsourcedNumberRule) Name() string { return "unsourced_numbers" }

func (unsourcedNumberRule) Apply(in Input, report *Report) float64 {
	stats := statPattern.FindAllString(in.Text, -1)
	if len(stats) == 0 || attributionPattern.MatchString(in.Text) {
		return 0
	}
	// Grounded answers inherit sourcing from the fetched context.
	if strings.TrimSpace(in.QueryContext) != "" {
		return 0
	}
	report.Warnings = append(report.Warnings, fmt.Sprintf("contains %d numeric claim(s) without attribution", len(stats)))
	return 0.15
}

// futureDateRule flags claims about years beyond the plausible horizon
// (next calendar year). Those are usually fabricated events.
type futureDateRule struct {
	year func() int
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func (futureDateRule) Name() string { return "future_date" }

func (r futureDateRule) Apply(in Input, report *Report) float64 {
	horizon := r.year() + 1
	for _, match := range yearPattern.FindAllString(in.Text, -1) {
		var y int
		fmt.Sscanf(match, "%d", &y)
		if y > horizon {
			report.Warnings = append(report.Warnings, fmt.Sprintf("future-date-suspect: references year %d, which has not happened yet", y))
			report.Suggestions = append(report.Suggestions, "treat statements about future events as speculation")
			return 0.3
		}
	}
	return 0
}

// politicalClaimRule flags asserted electoral outcomes that carry no
// attribution. Unsourced "X won the election" claims are a common
// fabrication shape, especially combined with a future year.
type politicalClaimRule struct{}

var electoralClaimPattern = regexp.MustCompile(
	`(?i)\b(won|wins|win|lost|loses|was\s+elected|re-?elected|defeated)\b[^.!?\n]{0,60}\b(election|elections|presidency|referendum|primary|primaries|vote|runoff)\b`)

func (politicalClaimRule) Name() string { return "political_claim" }

func (politicalClaimRule) Apply(in Input, report *Report) float64 {
	if !electoralClaimPattern.MatchString(in.Text) || attributionPattern.MatchString(in.Text) {
		return 0
	}
	report.Warnings = append(report.Warnings, "political-claim-undated: asserts an electoral outcome without a dated source")
	report.Suggestions = append(report.Suggestions, "cite when and where the result was reported")
	return 0.25
}

// missingDisclaimerRule penalizes answers in sensitive domains whose
// text carries no advisory language of its own. Annotate still appends
// the gateway disclaimer afterwards; the penalty records that the
// provider answer arrived bare.
type missingDisclaimerRule struct{}

var disclaimerPattern = regexp.MustCompile(
	`(?i)not\s+(financial|investment|medical)\s+advice|not\s+a\s+substitute\s+for\s+professional|educational\s+purposes|consult\s+a\s+(qualified\s+|licensed\s+)?(advisor|doctor|physician|professional)`)

func (missingDisclaimerRule) Name() string { return "missing_disclaimer" }

func (missingDisclaimerRule) Apply(in Input, report *Report) float64 {
	if _, sensitive := domainDisclaimers[in.Domain]; !sensitive {
		return 0
	}
	if disclaimerPattern.MatchString(in.Text) {
		return 0
	}
	report.Warnings = append(report.Warnings, "missing-disclaimer: sensitive-domain answer carries no advisory notice")
	return 0.15
}

// contradictionRule looks for opposing claim pairs in one response.
type contradictionRule struct{}

var contradictionPairs = [][2]string{
	{"is true", "is false"},
	{"always", "never"},
	{"increased", "decreased"},
	{"is safe", "is dangerous"},
	{"is legal", "is illegal"},
}

func (contradictionRule) Name() string { return "contradiction" }

func (contradictionRule) Apply(in Input, report *Report) float64 {
	lower := strings.ToLower(in.Text)
	for _, pair := range contradictionPairs {
		if strings.Contains(lower, pair[0]) && strings.Contains(lower, pair[1]) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("contains opposing claims (%q vs %q)", pair[0], pair[1]))
			return 0.2
		}
	}
	return 0
}

// repetitionRule penalizes responses that repeat the same sentence,
// a common degenerate-generation symptom.
type repetitionRule struct{}

func (repetitionRule) Name() string { return "repetition" }

func (repetitionRule) Apply(in Input, report *Report) float64 {
	sentences := splitSentences(in.Text)
	if len(sentences) < 4 {
		return 0
	}
	seen := make(map[string]bool, len(sentences))
	distinct := 0
	for _, s := range sentences {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if !seen[key] {
			seen[key] = true
			distinct++
		}
	}
	if float64(distinct)/float64(len(sentences)) >= 0.6 {
		return 0
	}
	report.Warnings = append(report.Warnings, "response repeats itself")
	return 0.2
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
