package nlp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
	"github.com/synaptica-ai/clinical-insights/pkg/observability/metrics"
)

// ModelUnavailableError reports that the language resource could not be
// obtained or loaded.
type ModelUnavailableError struct {
	reason error
}

func (e ModelUnavailableError) Error() string {
	return "language model unavailable: " + e.reason.Error()
}

func (e ModelUnavailableError) Unwrap() error {
	return e.reason
}

func IsModelUnavailable(err error) bool {
	var target ModelUnavailableError
	return errors.As(err, &target)
}

// Loader resolves the lexicon once per process: read the local file, fetch
// it when absent, then parse. Failures are not remembered, so a later call
// retries.
type Loader struct {
	path    string
	fetcher Fetcher

	mu      sync.Mutex
	lexicon atomic.Pointer[Lexicon]
}

func NewLoader(path string, fetcher Fetcher) *Loader {
	return &Loader{path: path, fetcher: fetcher}
}

// NewLoaderWithLexicon returns a loader that is already ready.
func NewLoaderWithLexicon(lex *Lexicon) *Loader {
	l := &Loader{}
	l.lexicon.Store(lex)
	return l
}

func (l *Loader) Ready() bool {
	return l.lexicon.Load() != nil
}

func (l *Loader) EnsureReady(ctx context.Context) (*Lexicon, error) {
	if lex := l.lexicon.Load(); lex != nil {
		return lex, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lex := l.lexicon.Load(); lex != nil {
		return lex, nil
	}

	data, err := l.read(ctx)
	if err != nil {
		return nil, ModelUnavailableError{reason: err}
	}
	lex, err := ParseLexicon(data)
	if err != nil {
		return nil, ModelUnavailableError{reason: err}
	}
	l.lexicon.Store(lex)

	logger.Log.WithFields(map[string]interface{}{
		"language": lex.Language,
		"version":  lex.Version,
		"path":     l.path,
	}).Info("Clinical lexicon loaded")
	return lex, nil
}

func (l *Loader) read(ctx context.Context) ([]byte, error) {
	if l.path == "" {
		return nil, errors.New("no lexicon path configured")
	}
	data, err := os.ReadFile(l.path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}
	if l.fetcher == nil {
		return nil, fmt.Errorf("lexicon %s not found and no source configured", l.path)
	}

	logger.Log.WithField("path", l.path).Info("Lexicon not found locally, fetching")
	data, err = l.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ObserveLexiconFetch()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		logger.Log.WithError(err).Warn("Could not create lexicon directory")
		return data, nil
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		logger.Log.WithError(err).Warn("Could not cache lexicon on disk")
	}
	return data, nil
}
