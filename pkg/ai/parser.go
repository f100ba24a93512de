package ai

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

type section int

const (
	sectionNone section = iota
	sectionCriteria
	sectionOverall
	sectionConfidence
	sectionStrengths
	sectionWeaknesses
	sectionFeedback
)

// Longer headers first so "WEIGHTED OVERALL SCORE" wins over any shorter prefix.
var sectionHeaders = []struct {
	name    string
	section section
}{
	{"WEIGHTED OVERALL SCORE", sectionOverall},
	{"OVERALL SCORE", sectionOverall},
	{"CRITERION SCORES", sectionCriteria},
	{"CRITERIA SCORES", sectionCriteria},
	{"DETAILED FEEDBACK", sectionFeedback},
	{"CONFIDENCE SCORE", sectionConfidence},
	{"CONFIDENCE", sectionConfidence},
	{"STRENGTHS", sectionStrengths},
	{"WEAKNESSES", sectionWeaknesses},
}

var (
	numberPattern    = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	ratioPattern     = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)`)
	criterionPattern = regexp.MustCompile(`^([^:]+?)\s*:\s*(-?\d+(?:\.\d+)?)`)
	bulletPattern    = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s*`)
	qualifierPattern = regexp.MustCompile(`\s*\([^)]*\)`)

	headerSeparators = []string{":", "—", "–", "-"}
)

// ParseCritique extracts an Assessment from critic text. Every configured
// criterion appears in the result; criteria the text does not score are 0.
// When the text has no usable overall score it is derived with WeightedScore.
func ParseCritique(text string, criteria map[string]int) (Assessment, error) {
	keys := make(map[string]string, len(criteria))
	for key := range criteria {
		keys[NormalizeLabel(key)] = key
	}

	assessment := Assessment{CriterionScores: make(map[string]float64, len(criteria))}
	var (
		current     section
		recognized  bool
		overallSeen bool
		confSeen    bool
		feedback    []string
	)

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := cleanLine(raw)
		if line == "" {
			if current == sectionFeedback && len(feedback) > 0 {
				feedback = append(feedback, "")
			}
			continue
		}

		// Inside feedback a header must stand alone or be written in capitals.
		if next, rest, ok := matchHeader(line, current == sectionFeedback); ok {
			current = next
			recognized = true
			line = rest
			if line == "" {
				continue
			}
		}

		switch current {
		case sectionCriteria:
			label, score, ok := parseCriterionLine(line)
			if !ok {
				continue
			}
			if key, known := keys[NormalizeLabel(label)]; known {
				assessment.CriterionScores[key] = clamp(score, 0, 100)
			}
		case sectionOverall:
			if overallSeen {
				continue
			}
			if value, ok := firstNumber(line); ok {
				assessment.OverallScore = clamp(value, 0, 100)
				overallSeen = true
			}
		case sectionConfidence:
			if confSeen {
				continue
			}
			if value, ok := parseConfidence(line); ok {
				assessment.Confidence = clamp(value, 0, 1)
				confSeen = true
			}
		case sectionStrengths:
			if item := bulletText(line); item != "" {
				assessment.Strengths = append(assessment.Strengths, item)
			}
		case sectionWeaknesses:
			if item := bulletText(line); item != "" {
				assessment.Weaknesses = append(assessment.Weaknesses, item)
			}
		case sectionFeedback:
			feedback = append(feedback, line)
		}
	}

	if !recognized {
		return Assessment{}, ErrUnparseableCritique
	}

	for _, key := range keys {
		if _, ok := assessment.CriterionScores[key]; !ok {
			assessment.CriterionScores[key] = 0
		}
	}

	if assessment.OverallScore == 0 {
		assessment.OverallScore = WeightedScore(assessment.CriterionScores, criteria)
		assessment.OverallScoreDerived = true
	}

	assessment.Feedback = strings.TrimSpace(strings.Join(feedback, "\n"))
	return assessment, nil
}

// WeightedScore returns Σ score×weight/100 over the configured criteria.
// Criteria without a score contribute 0.
func WeightedScore(scores map[string]float64, criteria map[string]int) float64 {
	keys := make([]string, 0, len(criteria))
	for key := range criteria {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	total := 0.0
	for _, key := range keys {
		total += scores[key] * float64(criteria[key]) / 100
	}
	return total
}

func cleanLine(raw string) string {
	line := strings.TrimSpace(raw)
	line = strings.TrimLeft(line, "#")
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "__", "")
	return strings.TrimSpace(line)
}

// matchHeader recognizes a section header at the start of line. With strict
// set, a header followed by text only counts when it is written in capitals.
func matchHeader(line string, strict bool) (section, string, bool) {
	upper := strings.ToUpper(line)
	for _, header := range sectionHeaders {
		if !strings.HasPrefix(upper, header.name) || len(line) < len(header.name) {
			continue
		}
		rest := strings.TrimSpace(line[len(header.name):])
		if strings.HasPrefix(rest, "(") {
			if end := strings.Index(rest, ")"); end >= 0 {
				rest = strings.TrimSpace(rest[end+1:])
			}
		}
		if rest == "" {
			return header.section, "", true
		}
		if strict && line[:len(header.name)] != header.name {
			continue
		}
		for _, sep := range headerSeparators {
			if strings.HasPrefix(rest, sep) {
				return header.section, strings.TrimSpace(strings.TrimPrefix(rest, sep)), true
			}
		}
	}
	return sectionNone, "", false
}

func parseCriterionLine(line string) (string, float64, bool) {
	line = bulletPattern.ReplaceAllString(line, "")
	line = strings.ReplaceAll(line, "*", "")
	match := criterionPattern.FindStringSubmatch(line)
	if match == nil {
		return "", 0, false
	}
	value, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return "", 0, false
	}
	return qualifierPattern.ReplaceAllString(match[1], ""), value, true
}

// parseConfidence reads "0.85", "85%", "85" and ratios such as "8/10" as a
// fraction of one.
func parseConfidence(line string) (float64, bool) {
	if match := ratioPattern.FindStringSubmatch(line); match != nil {
		numerator, errN := strconv.ParseFloat(match[1], 64)
		denominator, errD := strconv.ParseFloat(match[2], 64)
		if errN == nil && errD == nil && denominator > 0 {
			return numerator / denominator, true
		}
	}
	value, ok := firstNumber(line)
	if !ok {
		return 0, false
	}
	if strings.Contains(line, "%") || value > 1 {
		value /= 100
	}
	return value, true
}

func firstNumber(line string) (float64, bool) {
	match := numberPattern.FindString(line)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func bulletText(line string) string {
	return strings.TrimSpace(bulletPattern.ReplaceAllString(line, ""))
}

// NormalizeLabel folds "Plot & Story Structure" and "plot_story_structure" to the same key.
func NormalizeLabel(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
			continue
		}
		pendingSep = true
	}
	return b.String()
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
