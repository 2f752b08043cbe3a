package nlp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/synaptica-ai/clinical-insights/pkg/gateway/httpclient"
)

// maxLexiconBytes caps a downloaded lexicon.
const maxLexiconBytes = 16 << 20

// Fetcher obtains the raw lexicon when it is not present locally.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// BundledFetcher serves the lexicon compiled into the binary.
type BundledFetcher struct{}

func (BundledFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]byte(nil), bundledLexicon...), nil
}

// HTTPFetcher downloads the lexicon from a registry URL, optionally
// authenticating with OAuth2 client credentials.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
	Retry  httpclient.Policy
	creds  *clientcredentials.Config
}

type FetcherOptions struct {
	Timeout      time.Duration
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// NewFetcher picks a fetcher for source: "bundled", an http(s) URL, or
// ""/"none" for no fetcher at all.
func NewFetcher(source string, opts FetcherOptions) (Fetcher, error) {
	switch s := strings.TrimSpace(source); {
	case s == "" || strings.EqualFold(s, "none"):
		return nil, nil
	case strings.EqualFold(s, "bundled"):
		return BundledFetcher{}, nil
	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		if opts.Timeout <= 0 {
			opts.Timeout = 30 * time.Second
		}
		f := &HTTPFetcher{
			URL:    s,
			Client: httpclient.New(opts.Timeout),
			Retry:  httpclient.Policy{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second},
		}
		if opts.TokenURL != "" {
			f.creds = &clientcredentials.Config{
				ClientID:     opts.ClientID,
				ClientSecret: opts.ClientSecret,
				TokenURL:     opts.TokenURL,
			}
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported lexicon source %q", source)
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = httpclient.New(30 * time.Second)
	}
	if f.creds != nil {
		// The token exchange uses the same tuned transport.
		client = f.creds.Client(context.WithValue(ctx, oauth2.HTTPClient, client))
	}

	body, err := httpclient.Download(ctx, client, f.URL, maxLexiconBytes, f.Retry)
	if err != nil {
		return nil, fmt.Errorf("downloading lexicon: %w", err)
	}
	return body, nil
}
