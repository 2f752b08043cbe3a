package nlp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/synaptica-ai/clinical-insights/pkg/observability/metrics"
)

type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// NoteAnalysis is the deterministic extraction result for one note.
// Keywords and MedicalTerms are deduplicated and sorted.
type NoteAnalysis struct {
	OriginalText string   `json:"original_text"`
	Entities     []Entity `json:"entities"`
	Keywords     []string `json:"keywords"`
	MedicalTerms []string `json:"medical_terms"`
}

func (a NoteAnalysis) clone() NoteAnalysis {
	return NoteAnalysis{
		OriginalText: a.OriginalText,
		Entities:     append([]Entity{}, a.Entities...),
		Keywords:     append([]string{}, a.Keywords...),
		MedicalTerms: append([]string{}, a.MedicalTerms...),
	}
}

func emptyAnalysis(text string) NoteAnalysis {
	return NoteAnalysis{
		OriginalText: text,
		Entities:     []Entity{},
		Keywords:     []string{},
		MedicalTerms: []string{},
	}
}

type Analyzer struct {
	loader *Loader
	cache  *lru.Cache[string, NoteAnalysis]
}

// NewAnalyzer builds an analyzer over loader. cacheSize <= 0 disables the
// result cache.
func NewAnalyzer(loader *Loader, cacheSize int) (*Analyzer, error) {
	a := &Analyzer{loader: loader}
	if cacheSize > 0 {
		cache, err := lru.New[string, NoteAnalysis](cacheSize)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}
	return a, nil
}

func (a *Analyzer) Analyze(ctx context.Context, text string) (NoteAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return emptyAnalysis(text), nil
	}

	key := cacheKey(text)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			metrics.ObserveNoteAnalysis(true)
			return cached.clone(), nil
		}
	}

	lex, err := a.loader.EnsureReady(ctx)
	if err != nil {
		return NoteAnalysis{}, err
	}
	result := analyze(lex, text)
	if a.cache != nil {
		a.cache.Add(key, result.clone())
	}
	metrics.ObserveNoteAnalysis(false)
	return result, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func analyze(lex *Lexicon, text string) NoteAnalysis {
	tokens := tokenize(text, newNormalizer(lex.Language))
	result := emptyAnalysis(text)
	keywords := make(map[string]struct{})
	terms := make(map[string]struct{})

	for i := 0; i < len(tokens); {
		if p, ok := lex.match(tokens, i); ok {
			end := i + len(p.norms)
			result.Entities = append(result.Entities, Entity{
				Text:  text[tokens[i].Start:tokens[end-1].End],
				Label: p.label,
				Start: tokens[i].Start,
				End:   tokens[end-1].End,
			})
			for _, tok := range tokens[i:end] {
				if (p.label == LabelDisease || p.label == LabelSymptom) && !tok.Punct {
					terms[tok.Text] = struct{}{}
				}
				addKeyword(lex, tok, keywords)
			}
			i = end
			continue
		}
		addKeyword(lex, tokens[i], keywords)
		i++
	}

	result.Keywords = sortedKeys(keywords)
	result.MedicalTerms = sortedKeys(terms)
	return result
}

func addKeyword(lex *Lexicon, tok Token, into map[string]struct{}) {
	if tok.Alpha && !tok.Punct && !lex.IsStopword(tok.Norm) {
		into[tok.Text] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
