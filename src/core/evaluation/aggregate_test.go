package evaluation_test

import (
	"math"
	"testing"

	"rageval/src/core/evaluation"
)

func TestSummarizeWeightedOverall(t *testing.T) {
	scores := map[string]float64{
		"answer_relevancy":     0.8,
		"answer_correctness":   0.6,
		"nv_context_relevance": 0.9,
		"faithfulness":         0.5,
	}

	got := evaluation.Summarize(scores, evaluation.DefaultWeights)

	if math.Abs(got.OverallScore-0.72) > 1e-9 {
		t.Errorf("overall = %v, want 0.72", got.OverallScore)
	}
	if got.AvgAnswerRelevancy != 0.8 || got.AvgAnswerCorrectness != 0.6 ||
		got.AvgContextRelevance != 0.9 || got.AvgFaithfulness != 0.5 {
		t.Errorf("column means not carried through: %+v", got)
	}
}

func TestSummarizeLegacyAliasesAndDefaults(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		check  func(evaluation.ScoreSummary) bool
	}{
		{
			name:   "context_precision alias",
			scores: map[string]float64{"context_precision": 0.4},
			check:  func(s evaluation.ScoreSummary) bool { return s.AvgContextRelevance == 0.4 },
		},
		{
			name:   "canonical name beats alias",
			scores: map[string]float64{"context_relevance": 0.7, "context_precision": 0.1},
			check:  func(s evaluation.ScoreSummary) bool { return s.AvgContextRelevance == 0.7 },
		},
		{
			name:   "missing metrics default to zero",
			scores: map[string]float64{},
			check:  func(s evaluation.ScoreSummary) bool { return s.OverallScore == 0 },
		},
		{
			name:   "out of range values clamped",
			scores: map[string]float64{"answer_relevancy": 1.4, "faithfulness": -0.2},
			check: func(s evaluation.ScoreSummary) bool {
				return s.AvgAnswerRelevancy == 1.0 && s.AvgFaithfulness == 0
			},
		},
		{
			name:   "non-finite values become zero",
			scores: map[string]float64{"answer_relevancy": math.NaN(), "faithfulness": math.Inf(1)},
			check: func(s evaluation.ScoreSummary) bool {
				return s.AvgAnswerRelevancy == 0 && s.AvgFaithfulness == 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluation.Summarize(tt.scores, evaluation.DefaultWeights)
			if !tt.check(got) {
				t.Errorf("Summarize(%v) = %+v", tt.scores, got)
			}
		})
	}
}
