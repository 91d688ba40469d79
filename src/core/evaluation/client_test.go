package evaluation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"rageval/src/core/evaluation"
)

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQueryParsesHeterogeneousShapes(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantAnswer   string
		wantContexts []string
	}{
		{
			name:         "plain answer and contexts",
			body:         `{"answer":"x","contexts":["a","b"]}`,
			wantAnswer:   "x",
			wantContexts: []string{"a", "b"},
		},
		{
			name:         "data envelope with output and docs",
			body:         `{"data":{"output":"x","docs":["a","b"]}}`,
			wantAnswer:   "x",
			wantContexts: []string{"a", "b"},
		},
		{
			name:         "result envelope with nested answer text",
			body:         `{"result":{"answer":{"text":"nested"},"passages":[{"page_content":"p1"},{"content":"p2"}]}}`,
			wantAnswer:   "nested",
			wantContexts: []string{"p1", "p2"},
		},
		{
			name:         "data envelope with scalar context",
			body:         `{"data":{"text":"t","sources":"only one"}}`,
			wantAnswer:   "t",
			wantContexts: []string{"only one"},
		},
		{
			name:         "numeric answer",
			body:         `{"output":42,"documents":[{"snippet":"s"}]}`,
			wantAnswer:   "42",
			wantContexts: []string{"s"},
		},
		{
			name:         "answer without contexts",
			body:         `{"answer":"bare"}`,
			wantAnswer:   "bare",
			wantContexts: []string{},
		},
	}

	client := evaluation.NewHTTPBackendClient(nil, time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, tt.body)
			got := client.Query(context.Background(), srv.URL, "q", 5)
			if got.Err != nil {
				t.Fatalf("Query() error = %s", *got.Err)
			}
			if got.Answer == nil || *got.Answer != tt.wantAnswer {
				t.Errorf("answer = %v, want %q", got.Answer, tt.wantAnswer)
			}
			if !reflect.DeepEqual(got.Contexts, tt.wantContexts) {
				t.Errorf("contexts = %v, want %v", got.Contexts, tt.wantContexts)
			}
		})
	}
}

func TestQueryTopLevelWinsOverEnvelope(t *testing.T) {
	client := evaluation.NewHTTPBackendClient(nil, time.Second)
	srv := jsonServer(t, `{"answer":"top","data":{"answer":"nested"}}`)

	got := client.Query(context.Background(), srv.URL, "q", 5)
	if got.Err != nil {
		t.Fatalf("Query() error = %s", *got.Err)
	}
	if *got.Answer != "top" {
		t.Errorf("answer = %q, want the top-level candidate", *got.Answer)
	}
}

func TestQuerySendsWireContract(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	client := evaluation.NewHTTPBackendClient(nil, time.Second)
	client.Query(context.Background(), srv.URL, "what is X", 7)

	if received["query"] != "what is X" {
		t.Errorf("query field = %v, want question text", received["query"])
	}
	if received["top_k"] != float64(7) {
		t.Errorf("top_k field = %v, want 7", received["top_k"])
	}
}

func TestQueryErrorTaxonomy(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := evaluation.NewHTTPBackendClient(nil, time.Second)
		got := client.Query(context.Background(), srv.URL, "q", 5)
		if got.Err == nil || *got.Err != "http_500" {
			t.Fatalf("error = %v, want http_500", got.Err)
		}
		if got.Answer != nil {
			t.Fatal("failed call must not carry an answer")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(`{"answer":"late"}`))
		}))
		defer srv.Close()

		client := evaluation.NewHTTPBackendClient(nil, 30*time.Millisecond)
		got := client.Query(context.Background(), srv.URL, "q", 5)
		if got.Err == nil || *got.Err != "timeout" {
			t.Fatalf("error = %v, want timeout", got.Err)
		}
	})

	t.Run("unparseable body", func(t *testing.T) {
		srv := jsonServer(t, `not json`)
		client := evaluation.NewHTTPBackendClient(nil, time.Second)
		got := client.Query(context.Background(), srv.URL, "q", 5)
		if got.Err == nil {
			t.Fatal("unparseable body must produce an error")
		}
	})

	t.Run("no recognizable answer", func(t *testing.T) {
		srv := jsonServer(t, `{"something":"else"}`)
		client := evaluation.NewHTTPBackendClient(nil, time.Second)
		got := client.Query(context.Background(), srv.URL, "q", 5)
		if got.Err == nil {
			t.Fatal("shape without answer must produce an error")
		}
	})
}
