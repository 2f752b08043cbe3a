package insights

import (
	"strconv"
	"strings"

	"github.com/synaptica-ai/clinical-insights/pkg/nlp"
)

const (
	highLikelihood = "ALERT: High likelihood of complication detected."
	lowLikelihood  = "Low likelihood of complication."
)

// Synthesize composes the dashboard insight. Clause order is fixed and
// empty term or keyword sets drop their clause.
func Synthesize(prediction PredictionResult, notes nlp.NoteAnalysis) string {
	clauses := make([]string, 0, 4)
	if prediction.PredictedLabel {
		clauses = append(clauses, highLikelihood)
	} else {
		clauses = append(clauses, lowLikelihood)
	}
	clauses = append(clauses, "Probabilities: "+formatProbabilities(prediction.Probabilities)+".")
	if len(notes.MedicalTerms) > 0 {
		clauses = append(clauses, "Relevant medical terms in notes: "+strings.Join(notes.MedicalTerms, ", ")+".")
	}
	if len(notes.Keywords) > 0 {
		clauses = append(clauses, "Note keywords: "+strings.Join(notes.Keywords, ", ")+".")
	}
	return strings.Join(clauses, " ")
}

func formatProbabilities(probs []float64) string {
	parts := make([]string, len(probs))
	for i, p := range probs {
		part := strconv.FormatFloat(p, 'g', -1, 64)
		// Whole numbers keep a decimal point: [0.0, 1.0], not [0, 1].
		if !strings.ContainsAny(part, ".eIN") {
			part += ".0"
		}
		parts[i] = part
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
