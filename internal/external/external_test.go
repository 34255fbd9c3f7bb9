package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUnconfiguredClients(t *testing.T) {
	ctx := context.Background()
	if _, err := NewSupabaseStorage("", "", "", 0).Upload(ctx, "a.png", "image/png", []byte("x")); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("storage: expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewGemini("", "", 0).GenerateContent(ctx, "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("llm: expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewSerpAPI("", 0).Search(ctx, "flu"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("search: expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewNeo4jHTTP("", "", "", 0).ExecuteQuery(ctx, "RETURN 1", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("graph: expected ErrNotConfigured, got %v", err)
	}
	if _, _, err := NewElevenLabs("", "", 0).Synthesize(ctx, "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("speech: expected ErrNotConfigured, got %v", err)
	}
}

func TestSupabaseUpload(t *testing.T) {
	var gotPath, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"ok"}`))
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL+"/", "service-key", "rx", time.Second)
	u, err := s.Upload(context.Background(), "prescriptions/a b.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotPath != "/storage/v1/object/rx/prescriptions/a b.pdf" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer service-key" || gotType != "application/pdf" || gotBody != "%PDF" {
		t.Errorf("unexpected request: auth=%q type=%q body=%q", gotAuth, gotType, gotBody)
	}
	if u != srv.URL+"/storage/v1/object/public/rx/prescriptions/a%20b.pdf" {
		t.Errorf("unexpected url %q", u)
	}
}

func TestGeminiGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:generateContent" || r.URL.Query().Get("key") != "k" {
			http.Error(w, "bad route", http.StatusNotFound)
			return
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contents[0].Parts[0].Text != "hello" {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hi "},{"text":"there "}]}}]}`))
	}))
	defer srv.Close()

	got, err := NewGemini("k", "test-model", time.Second).WithBaseURL(srv.URL).GenerateContent(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "Hi there" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewGemini("k", "", time.Second).WithBaseURL(srv.URL).GenerateContent(context.Background(), "x")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()
	_, err = NewSerpAPI("k", 20*time.Millisecond).WithBaseURL(slow.URL).Search(context.Background(), "x")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream on timeout, got %v", err)
	}
}

func TestSerpAPISearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "migraine relief" || r.URL.Query().Get("api_key") != "k" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		results := make([]SearchResult, 7)
		for i := range results {
			results[i] = SearchResult{Title: "t", Link: "https://example.com", Snippet: "s"}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"organic_results": results})
	}))
	defer srv.Close()

	got, err := NewSerpAPI("k", time.Second).WithBaseURL(srv.URL).Search(context.Background(), "migraine relief")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 results, got %d", len(got))
	}
}

func TestNeo4jExecuteQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if r.URL.Path != "/db/neo4j/tx/commit" || !ok || user != "neo4j" || pass != "pw" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"columns":["condition","specialization"],"data":[{"row":["Migraine","Neurology"]},{"row":["Asthma","Pulmonology"]}]}],"errors":[]}`))
	}))
	defer srv.Close()

	rows, err := NewNeo4jHTTP(srv.URL, "neo4j", "pw", time.Second).ExecuteQuery(context.Background(), "MATCH (c) RETURN c", map[string]interface{}{"k": "v"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 || rows[0]["condition"] != "Migraine" || rows[1]["specialization"] != "Pulmonology" {
		t.Errorf("unexpected rows %v", rows)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[],"errors":[{"code":"Neo.ClientError.Statement.SyntaxError","message":"bad"}]}`))
	}))
	defer failing.Close()
	if _, err := NewNeo4jHTTP(failing.URL, "", "", time.Second).ExecuteQuery(context.Background(), "RETURN", nil); !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "k" || r.URL.Path != "/v1/text-to-speech/"+DefaultVoice {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	audio, ct, err := NewElevenLabs("k", "", time.Second).WithBaseURL(srv.URL).Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "ID3audio" || ct != "audio/mpeg" {
		t.Errorf("unexpected audio %q %q", audio, ct)
	}
}
