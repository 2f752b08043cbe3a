package nlp

import (
	"context"
	"reflect"
	"testing"
)

func newTestAnalyzer(t *testing.T, cacheSize int) *Analyzer {
	t.Helper()
	lex, err := BundledLexicon()
	if err != nil {
		t.Fatalf("bundled lexicon: %v", err)
	}
	a, err := NewAnalyzer(NewLoaderWithLexicon(lex), cacheSize)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	return a
}

func TestAnalyzeEmptyText(t *testing.T) {
	// The loader has no path or fetcher: empty input must not touch it.
	a, err := NewAnalyzer(NewLoader("", nil), 0)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	for _, text := range []string{"", "   \n\t"} {
		got, err := a.Analyze(context.Background(), text)
		if err != nil {
			t.Fatalf("Analyze(%q): %v", text, err)
		}
		if len(got.Entities) != 0 || len(got.Keywords) != 0 || len(got.MedicalTerms) != 0 {
			t.Fatalf("expected empty analysis for %q, got %+v", text, got)
		}
		if got.Entities == nil || got.Keywords == nil || got.MedicalTerms == nil {
			t.Fatalf("expected non-nil empty slices, got %+v", got)
		}
	}
}

func TestAnalyzePortugueseNote(t *testing.T) {
	a := newTestAnalyzer(t, 0)
	text := "Paciente apresentou febre de 38,5 e dor abdominal após a cirurgia."

	got, err := a.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	wantEntities := []Entity{
		{Text: "febre", Label: LabelSymptom},
		{Text: "dor abdominal", Label: LabelSymptom},
		{Text: "cirurgia", Label: "PROCEDURE"},
	}
	if len(got.Entities) != len(wantEntities) {
		t.Fatalf("expected %d entities, got %+v", len(wantEntities), got.Entities)
	}
	for i, want := range wantEntities {
		e := got.Entities[i]
		if e.Text != want.Text || e.Label != want.Label {
			t.Fatalf("entity %d: expected %s/%s, got %s/%s", i, want.Text, want.Label, e.Text, e.Label)
		}
		if text[e.Start:e.End] != e.Text {
			t.Fatalf("entity %d offsets [%d:%d] do not cover %q", i, e.Start, e.End, e.Text)
		}
	}

	wantKeywords := []string{"Paciente", "abdominal", "cirurgia", "dor", "febre"}
	if !reflect.DeepEqual(got.Keywords, wantKeywords) {
		t.Fatalf("keywords: expected %v, got %v", wantKeywords, got.Keywords)
	}
	wantTerms := []string{"abdominal", "dor", "febre"}
	if !reflect.DeepEqual(got.MedicalTerms, wantTerms) {
		t.Fatalf("medical terms: expected %v, got %v", wantTerms, got.MedicalTerms)
	}
}

func TestAnalyzeMatchesSynonymsCaseInsensitively(t *testing.T) {
	a := newTestAnalyzer(t, 0)

	got, err := a.Analyze(context.Background(), "Quadro FEBRIL com suspeita de Sepse.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	labels := map[string]string{}
	for _, e := range got.Entities {
		labels[e.Text] = e.Label
	}
	if labels["FEBRIL"] != LabelSymptom {
		t.Fatalf("expected FEBRIL tagged as symptom, got %+v", got.Entities)
	}
	if labels["Sepse"] != LabelDisease {
		t.Fatalf("expected Sepse tagged as disease, got %+v", got.Entities)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	for _, size := range []int{0, 8} {
		a := newTestAnalyzer(t, size)
		text := "Evoluiu com náusea, vômito e taquicardia; iniciada ceftriaxona."

		first, err := a.Analyze(context.Background(), text)
		if err != nil {
			t.Fatalf("first Analyze: %v", err)
		}
		// Mutating a returned result must not leak into later calls.
		if len(first.Keywords) > 0 {
			first.Keywords[0] = "mutated"
		}
		second, err := a.Analyze(context.Background(), text)
		if err != nil {
			t.Fatalf("second Analyze: %v", err)
		}
		third, err := a.Analyze(context.Background(), text)
		if err != nil {
			t.Fatalf("third Analyze: %v", err)
		}
		if !reflect.DeepEqual(second, third) {
			t.Fatalf("cache size %d: results differ\n%+v\n%+v", size, second, third)
		}
		for _, kw := range second.Keywords {
			if kw == "mutated" {
				t.Fatalf("cache size %d: caller mutation leaked into result", size)
			}
		}
	}
}

func TestTokenizeKeepsDecimalNumbers(t *testing.T) {
	tokens := tokenize("Tax 38,5 e PA 120/80.", newNormalizer("pt"))
	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}
	want := []string{"Tax", "38,5", "e", "PA", "120", "/", "80", "."}
	if !reflect.DeepEqual(texts, want) {
		t.Fatalf("expected %v, got %v", want, texts)
	}
	if tokens[1].Alpha {
		t.Fatal("numeric token must not be alphabetic")
	}
	if !tokens[len(tokens)-1].Punct {
		t.Fatal("trailing period must be punctuation")
	}
}

func TestTokenizeKeepsHyphenatedCompounds(t *testing.T) {
	tokens := tokenize("Pós-operatório sem febre - estável; lesão 3-4.", newNormalizer("pt"))
	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}
	want := []string{"Pós-operatório", "sem", "febre", "-", "estável", ";", "lesão", "3", "-", "4", "."}
	if !reflect.DeepEqual(texts, want) {
		t.Fatalf("expected %v, got %v", want, texts)
	}
	if !tokens[0].Alpha || tokens[0].Norm != "pós-operatório" {
		t.Fatalf("expected alphabetic compound, got %+v", tokens[0])
	}
}

func TestAnalyzeKeepsHyphenatedKeyword(t *testing.T) {
	a := newTestAnalyzer(t, 0)
	got, err := a.Analyze(context.Background(), "Evolução pós-operatório estável.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	found := false
	for _, k := range got.Keywords {
		if k == "pós" || k == "operatório" {
			t.Fatalf("compound split into %q: %v", k, got.Keywords)
		}
		if k == "pós-operatório" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pós-operatório keyword, got %v", got.Keywords)
	}
}
