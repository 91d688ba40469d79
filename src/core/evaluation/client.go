package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

const DefaultQueryTimeout = 45 * time.Second

// queryRequest is the wire contract imposed on participant endpoints.
type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// HTTPBackendClient queries a participant's RAG endpoint and tolerantly
// parses whatever JSON shape it answers with. It performs no retries; retry
// policy belongs to the caller.
type HTTPBackendClient struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewHTTPBackendClient(c *http.Client, timeout time.Duration) *HTTPBackendClient {
	if c == nil {
		c = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &HTTPBackendClient{httpClient: c, timeout: timeout}
}

// Query sends one question and classifies the outcome as an answer or as one
// of the per-case error kinds: "timeout", "http_<status>", or the literal
// transport/parse error.
func (c *HTTPBackendClient) Query(ctx context.Context, endpoint, question string, topK int) QueryResult {
	body, err := json.Marshal(queryRequest{Query: question, TopK: topK})
	if err != nil {
		return errorResult(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errorResult(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return errorResult("timeout")
		}
		return errorResult(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult("http_" + strconv.Itoa(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return errorResult("timeout")
		}
		return errorResult(err.Error())
	}

	answer, contexts, ok := extractPayload(data)
	if !ok || answer == "" {
		return errorResult("no answer field found in response")
	}
	return QueryResult{Answer: &answer, Contexts: contexts}
}

func errorResult(message string) QueryResult {
	return QueryResult{Contexts: []string{}, Err: &message}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Third parties answer in wildly different shapes. The parser walks a fixed
// list of candidate objects (top level, then well-known envelopes) and takes
// the first one that yields an answer or a context list.
var (
	envelopeKeys = []string{"data", "result", "response"}
	answerKeys   = []string{"answer", "response", "output", "result", "text"}
	contextKeys  = []string{"contexts", "context", "documents", "docs", "passages", "sources"}
	chunkKeys    = []string{"text", "content", "chunk", "snippet", "page_content", "body"}
)

func extractPayload(data []byte) (answer string, contexts []string, ok bool) {
	var root map[string]interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return "", nil, false
	}

	candidates := []map[string]interface{}{root}
	for _, key := range envelopeKeys {
		if nested, isObj := root[key].(map[string]interface{}); isObj {
			candidates = append(candidates, nested)
		}
	}

	for _, candidate := range candidates {
		answer, haveAnswer := extractAnswer(candidate)
		contexts, haveContexts := extractContexts(candidate)
		if haveAnswer || haveContexts {
			return answer, contexts, true
		}
	}
	return "", nil, false
}

func extractAnswer(obj map[string]interface{}) (string, bool) {
	for _, key := range answerKeys {
		value, present := obj[key]
		if !present {
			continue
		}
		switch v := value.(type) {
		case string:
			return v, true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case map[string]interface{}:
			if text, isStr := v["text"].(string); isStr {
				return text, true
			}
		}
	}
	return "", false
}

func extractContexts(obj map[string]interface{}) ([]string, bool) {
	for _, key := range contextKeys {
		value, present := obj[key]
		if !present {
			continue
		}
		switch v := value.(type) {
		case []interface{}:
			return contextList(v), true
		case string:
			return []string{v}, true
		case float64:
			return []string{strconv.FormatFloat(v, 'f', -1, 64)}, true
		}
	}
	return []string{}, false
}

func contextList(items []interface{}) []string {
	contexts := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			contexts = append(contexts, v)
		case float64:
			contexts = append(contexts, strconv.FormatFloat(v, 'f', -1, 64))
		case map[string]interface{}:
			for _, key := range chunkKeys {
				if text, isStr := v[key].(string); isStr {
					contexts = append(contexts, text)
					break
				}
			}
		}
	}
	return contexts
}

var _ BackendClient = (*HTTPBackendClient)(nil)
