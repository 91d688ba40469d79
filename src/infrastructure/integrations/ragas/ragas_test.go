package ragas_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rageval/src/core/evaluation"
	"rageval/src/infrastructure/integrations/ragas"
)

func validInput() evaluation.EngineInput {
	return evaluation.EngineInput{
		Questions:    []string{"q1", "q2"},
		Answers:      []string{"a1", "a2"},
		Contexts:     [][]string{{"c1"}, {}},
		GroundTruths: []string{"g1", "g2"},
	}
}

func TestEvaluate(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/evaluate" {
			t.Errorf("path = %s, want /evaluate", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(ragas.EvaluateResponse{
			OK:     true,
			Size:   2,
			Scores: map[string]float64{"answer_relevancy": 0.75},
			Results: []map[string]float64{
				{"answer_relevancy": 0.7},
				{"answer_relevancy": 0.8},
			},
		})
	}))
	defer srv.Close()

	client := ragas.NewClient(srv.URL, &http.Client{})
	got, err := client.Evaluate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if got.Scores["answer_relevancy"] != 0.75 {
		t.Errorf("scores = %v", got.Scores)
	}
	if len(got.Rows) != 2 || got.Rows[1]["answer_relevancy"] != 0.8 {
		t.Errorf("rows = %v", got.Rows)
	}

	questions, ok := received["question"].([]interface{})
	if !ok || len(questions) != 2 {
		t.Errorf("request question column = %v", received["question"])
	}
	if _, ok := received["ground_truth"]; !ok {
		t.Error("request missing ground_truth column")
	}
}

func TestEvaluateRejectsInvalidBatch(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := ragas.NewClient(srv.URL, &http.Client{})

	tests := []struct {
		name  string
		input evaluation.EngineInput
	}{
		{"empty batch", evaluation.EngineInput{}},
		{
			"length mismatch",
			evaluation.EngineInput{
				Questions:    []string{"q1", "q2"},
				Answers:      []string{"a1"},
				Contexts:     [][]string{{"c"}, {}},
				GroundTruths: []string{"g1", "g2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.Evaluate(context.Background(), tt.input); err == nil {
				t.Fatal("Evaluate() succeeded, want validation error")
			}
			if called {
				t.Fatal("invalid batch reached the engine")
			}
		})
	}
}

func TestEvaluateEngineRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ragas.EvaluateResponse{OK: false, Error: "invalid_dataset"})
	}))
	defer srv.Close()

	client := ragas.NewClient(srv.URL, &http.Client{})
	if _, err := client.Evaluate(context.Background(), validInput()); err == nil {
		t.Fatal("Evaluate() succeeded, want engine rejection")
	}
}

func TestEvaluateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := ragas.NewClient(srv.URL, &http.Client{})
	if _, err := client.Evaluate(context.Background(), validInput()); err == nil {
		t.Fatal("Evaluate() succeeded, want HTTP error")
	}
}
