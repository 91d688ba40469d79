package ragas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"rageval/src/core/evaluation"
)

const (
	DefaultURL = "http://localhost:8100"
)

// EvaluateRequest carries the parallel-array batch scored by the engine in a
// single call.
type EvaluateRequest struct {
	Questions    []string   `json:"question"`
	Answers      []string   `json:"answer"`
	Contexts     [][]string `json:"contexts"`
	GroundTruths []string   `json:"ground_truth"`
}

// EvaluateResponse is the engine's verdict: column means plus per-sample
// rows in input order.
type EvaluateResponse struct {
	OK      bool                 `json:"ok"`
	Error   string               `json:"error,omitempty"`
	Size    int                  `json:"size"`
	Scores  map[string]float64   `json:"scores"`
	Results []map[string]float64 `json:"results"`
}

// Client talks to the metrics engine service that scores evaluation batches.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, c *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	return &Client{
		httpClient: c,
		baseURL:    baseURL,
	}
}

// Evaluate scores the whole batch at once. Structurally invalid input
// (mismatched array lengths) is rejected before any network call.
func (c *Client) Evaluate(ctx context.Context, input evaluation.EngineInput) (*evaluation.EngineResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	reqBody := EvaluateRequest{
		Questions:    input.Questions,
		Answers:      input.Answers,
		Contexts:     input.Contexts,
		GroundTruths: input.GroundTruths,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/evaluate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("metrics engine returned status %d: %s", resp.StatusCode, string(body))
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	if !result.OK {
		if result.Error == "" {
			result.Error = "unspecified engine error"
		}
		return nil, fmt.Errorf("metrics engine rejected batch: %s", result.Error)
	}

	return &evaluation.EngineResult{
		Scores: result.Scores,
		Rows:   result.Results,
	}, nil
}

func validateInput(input evaluation.EngineInput) error {
	n := len(input.Questions)
	if n == 0 {
		return fmt.Errorf("empty evaluation batch")
	}
	if len(input.Answers) != n || len(input.Contexts) != n || len(input.GroundTruths) != n {
		return fmt.Errorf("evaluation batch length mismatch: %d questions, %d answers, %d contexts, %d ground truths",
			n, len(input.Answers), len(input.Contexts), len(input.GroundTruths))
	}
	return nil
}

var _ evaluation.MetricsEngine = (*Client)(nil)
