package dlp

import (
	"regexp"
	"sort"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

// Position is one identifier match in scanned text.
type Position struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Type  string `json:"type"`
}

type Result struct {
	Detected   bool       `json:"detected"`
	Confidence float64    `json:"confidence"`
	Types      []string   `json:"types"`
	Positions  []Position `json:"positions"`
}

// Detector masks patient identifiers in free text. A nil Detector passes
// text through unchanged.
type Detector struct {
	rules []compiledRule
}

func NewDetector(cfg RulesConfig) (*Detector, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Detector{rules: compiled}, nil
}

func (d *Detector) Detect(text string) Result {
	if d == nil {
		return Result{}
	}

	var positions []Position
	types := make(map[string]struct{})
	for _, rule := range d.rules {
		for _, match := range rule.re.FindAllStringIndex(text, -1) {
			types[rule.rule.Type] = struct{}{}
			positions = append(positions, Position{Start: match[0], End: match[1], Type: rule.rule.Type})
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Start < positions[j].Start })

	typeList := make([]string, 0, len(types))
	for t := range types {
		typeList = append(typeList, t)
	}
	sort.Strings(typeList)

	return Result{
		Detected:   len(positions) > 0,
		Confidence: confidenceScore(len(positions)),
		Types:      typeList,
		Positions:  positions,
	}
}

// Scrub replaces every match with its rule's mask.
func (d *Detector) Scrub(text string) string {
	if d == nil {
		return text
	}
	for _, rule := range d.rules {
		text = rule.re.ReplaceAllString(text, rule.rule.Mask)
	}
	return text
}

// Sanitize scrubs every string inside an event payload.
func (d *Detector) Sanitize(data map[string]interface{}) map[string]interface{} {
	if d == nil {
		return data
	}

	copyMap := make(map[string]interface{}, len(data))
	for key, value := range data {
		copyMap[key] = d.sanitizeValue(value)
	}
	return copyMap
}

func (d *Detector) sanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return d.Scrub(v)
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = d.Scrub(s)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, nested := range v {
			out[k] = d.sanitizeValue(nested)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			out[i] = d.sanitizeValue(nested)
		}
		return out
	default:
		return value
	}
}

func confidenceScore(count int) float64 {
	switch {
	case count == 0:
		return 0
	case count == 1:
		return 0.7
	case count == 2:
		return 0.85
	default:
		return 0.95
	}
}
