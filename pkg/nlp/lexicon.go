package nlp

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entity labels that mark a token as a domain term.
const (
	LabelDisease = "DISEASE"
	LabelSymptom = "SYMPTOM"
)

//go:embed lexicon/pt_clinical.yaml
var bundledLexicon []byte

type Concept struct {
	Text     string   `yaml:"text" json:"text"`
	Label    string   `yaml:"label" json:"label"`
	ICD10    string   `yaml:"icd10,omitempty" json:"icd10,omitempty"`
	SNOMED   string   `yaml:"snomed,omitempty" json:"snomed,omitempty"`
	Synonyms []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

type lexiconFile struct {
	Language  string    `yaml:"language"`
	Version   string    `yaml:"version"`
	Stopwords []string  `yaml:"stopwords"`
	Entities  []Concept `yaml:"entities"`
}

type phrase struct {
	norms []string
	label string
}

// Lexicon is the compiled language resource. It is immutable after
// ParseLexicon and safe to share between goroutines.
type Lexicon struct {
	Language  string
	Version   string
	stopwords map[string]struct{}
	// phrases indexed by their first normalised token, longest first.
	phrases map[string][]phrase
}

func ParseLexicon(data []byte) (*Lexicon, error) {
	var file lexiconFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding lexicon: %w", err)
	}
	if file.Language == "" {
		return nil, errors.New("lexicon language missing")
	}
	if len(file.Stopwords) == 0 && len(file.Entities) == 0 {
		return nil, errors.New("lexicon has neither stopwords nor entities")
	}

	lex := &Lexicon{
		Language:  file.Language,
		Version:   file.Version,
		stopwords: make(map[string]struct{}, len(file.Stopwords)),
		phrases:   make(map[string][]phrase),
	}
	n := newNormalizer(file.Language)
	for _, word := range file.Stopwords {
		if w := n.normalize(strings.TrimSpace(word)); w != "" {
			lex.stopwords[w] = struct{}{}
		}
	}

	for _, concept := range file.Entities {
		label := strings.ToUpper(strings.TrimSpace(concept.Label))
		if label == "" {
			return nil, fmt.Errorf("lexicon entity %q has no label", concept.Text)
		}
		for _, surface := range append([]string{concept.Text}, concept.Synonyms...) {
			tokens := tokenize(surface, n)
			if len(tokens) == 0 {
				continue
			}
			norms := make([]string, len(tokens))
			for i, tok := range tokens {
				norms[i] = tok.Norm
			}
			lex.phrases[norms[0]] = append(lex.phrases[norms[0]], phrase{norms: norms, label: label})
		}
	}
	for key := range lex.phrases {
		candidates := lex.phrases[key]
		sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i].norms) > len(candidates[j].norms) })
	}
	return lex, nil
}

// BundledLexicon parses the lexicon compiled into the binary.
func BundledLexicon() (*Lexicon, error) {
	return ParseLexicon(bundledLexicon)
}

func (l *Lexicon) IsStopword(norm string) bool {
	_, ok := l.stopwords[norm]
	return ok
}

// match returns the longest phrase starting at tokens[start].
func (l *Lexicon) match(tokens []Token, start int) (phrase, bool) {
	for _, candidate := range l.phrases[tokens[start].Norm] {
		if start+len(candidate.norms) > len(tokens) {
			continue
		}
		ok := true
		for k, norm := range candidate.norms {
			if tokens[start+k].Norm != norm {
				ok = false
				break
			}
		}
		if ok {
			return candidate, true
		}
	}
	return phrase{}, false
}
