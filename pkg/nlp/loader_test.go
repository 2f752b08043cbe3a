package nlp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

type countingFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (f *countingFetcher) Fetch(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	return f.data, f.err
}

func TestLoaderFetchesOnceAndCachesOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon", "pt.yaml")
	fetcher := &countingFetcher{data: bundledLexicon}
	loader := NewLoader(path, fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.EnsureReady(context.Background()); err != nil {
				t.Errorf("EnsureReady: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one fetch, got %d", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected lexicon written to %s: %v", path, err)
	}

	// A fresh loader over the same path reads the local copy.
	second := &countingFetcher{err: errors.New("should not be called")}
	if _, err := NewLoader(path, second).EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady from disk: %v", err)
	}
	if second.calls.Load() != 0 {
		t.Fatal("expected local file to be used without fetching")
	}
}

func TestLoaderDownloadsOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(bundledLexicon)
	}))
	defer srv.Close()

	fetcher, err := NewFetcher(srv.URL+"/lexicon/pt.yaml", FetcherOptions{})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	loader := NewLoader(filepath.Join(t.TempDir(), "pt.yaml"), fetcher)
	lex, err := loader.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if lex.Language != "pt" {
		t.Fatalf("expected pt lexicon, got %q", lex.Language)
	}
	if !loader.Ready() {
		t.Fatal("expected loader to report ready")
	}
}

func TestLoaderReportsModelUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	fetcher, err := NewFetcher(srv.URL, FetcherOptions{})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	loader := NewLoader(filepath.Join(t.TempDir(), "pt.yaml"), fetcher)
	a, err := NewAnalyzer(loader, 4)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	_, err = a.Analyze(context.Background(), "febre alta")
	if !IsModelUnavailable(err) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	if loader.Ready() {
		t.Fatal("failed load must not mark the loader ready")
	}
}

func TestLoaderRetriesAfterFailure(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("registry down")}
	loader := NewLoader(filepath.Join(t.TempDir(), "pt.yaml"), fetcher)

	if _, err := loader.EnsureReady(context.Background()); !IsModelUnavailable(err) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	fetcher.err = nil
	fetcher.data = bundledLexicon
	if _, err := loader.EnsureReady(context.Background()); err != nil {
		t.Fatalf("expected recovery on second call, got %v", err)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", got)
	}
}

func TestLoaderRejectsMalformedLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pt.yaml")
	if err := os.WriteFile(path, []byte("stopwords: [a]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader(path, nil).EnsureReady(context.Background()); !IsModelUnavailable(err) {
		t.Fatalf("expected ModelUnavailableError for lexicon without language, got %v", err)
	}
}

func TestNewFetcherSources(t *testing.T) {
	if f, err := NewFetcher("none", FetcherOptions{}); err != nil || f != nil {
		t.Fatalf("expected no fetcher for none, got %v %v", f, err)
	}
	if f, err := NewFetcher("bundled", FetcherOptions{}); err != nil {
		t.Fatalf("bundled: %v", err)
	} else if _, ok := f.(BundledFetcher); !ok {
		t.Fatalf("expected BundledFetcher, got %T", f)
	}
	if _, err := NewFetcher("ftp://registry/lexicon", FetcherOptions{}); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestHTTPFetcherAuthenticatesWithClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"registry-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/lexicon", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer registry-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(bundledLexicon)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher, err := NewFetcher(srv.URL+"/lexicon", FetcherOptions{
		TokenURL:     srv.URL + "/token",
		ClientID:     "insights",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	data, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data) != len(bundledLexicon) {
		t.Fatalf("expected %d bytes, got %d", len(bundledLexicon), len(data))
	}
}
