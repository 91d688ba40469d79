package evaluation

import "math"

// Weights is the scoring policy applied when combining metric means into the
// overall score. Tunable configuration, not derived data.
type Weights struct {
	AnswerRelevancy   float64
	AnswerCorrectness float64
	ContextRelevance  float64
	Faithfulness      float64
}

var DefaultWeights = Weights{
	AnswerRelevancy:   0.30,
	AnswerCorrectness: 0.30,
	ContextRelevance:  0.25,
	Faithfulness:      0.15,
}

// Metric-engine columns are read under the canonical name first, then under
// the legacy aliases older engine versions emit.
var metricAliases = map[string][]string{
	"context_relevance":  {"context_relevance", "nv_context_relevance", "context_precision"},
	"answer_correctness": {"answer_correctness", "answer_similarity"},
	"answer_relevancy":   {"answer_relevancy"},
	"faithfulness":       {"faithfulness"},
}

// Summarize folds the engine's column means into the job-level summary.
// Missing columns default to 0; every value is clamped into [0,1] and
// non-finite values map to 0.
func Summarize(scores map[string]float64, weights Weights) ScoreSummary {
	relevancy := clamp01(lookupMetric(scores, "answer_relevancy"))
	correctness := clamp01(lookupMetric(scores, "answer_correctness"))
	contextRel := clamp01(lookupMetric(scores, "context_relevance"))
	faithfulness := clamp01(lookupMetric(scores, "faithfulness"))

	overall := relevancy*weights.AnswerRelevancy +
		correctness*weights.AnswerCorrectness +
		contextRel*weights.ContextRelevance +
		faithfulness*weights.Faithfulness

	return ScoreSummary{
		AvgContextRelevance:  contextRel,
		AvgAnswerCorrectness: correctness,
		AvgAnswerRelevancy:   relevancy,
		AvgFaithfulness:      faithfulness,
		OverallScore:         clamp01(overall),
	}
}

// breakdownFromRow maps one engine per-sample row into a MetricBreakdown
// with the same alias handling and clamping as the summary.
func breakdownFromRow(row map[string]float64) MetricBreakdown {
	return MetricBreakdown{
		ContextRelevance:  clamp01(lookupMetric(row, "context_relevance")),
		AnswerCorrectness: clamp01(lookupMetric(row, "answer_correctness")),
		AnswerRelevancy:   clamp01(lookupMetric(row, "answer_relevancy")),
		Faithfulness:      clamp01(lookupMetric(row, "faithfulness")),
	}
}

func lookupMetric(values map[string]float64, canonical string) float64 {
	for _, name := range metricAliases[canonical] {
		if v, ok := values[name]; ok {
			return v
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
