package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxBodyBytes caps a single catalog response.
const maxBodyBytes = 50 << 20

// ErrNoSource is returned by Fetch when no source URL is configured.
var ErrNoSource = errors.New("no catalog source URL configured")

// Fetcher retrieves raw catalog data from a primary URL plus optional extras.
type Fetcher struct {
	sourceURL  string
	extraURLs  []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL. Extra URLs are
// fetched concurrently and appended; their failures are logged and skipped.
func NewFetcher(sourceURL string, logger *slog.Logger, extraURLs ...string) *Fetcher {
	return &Fetcher{
		sourceURL: sourceURL,
		extraURLs: extraURLs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch retrieves the primary source and any extra sources and returns the
// concatenated catalog text.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.sourceURL == "" {
		return nil, ErrNoSource
	}

	primary, err := f.fetchOne(ctx, f.sourceURL)
	if err != nil {
		return nil, err
	}
	if len(f.extraURLs) == 0 {
		return primary, nil
	}

	extras := make([][]byte, len(f.extraURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range f.extraURLs {
		g.Go(func() error {
			data, err := f.fetchOne(gctx, u)
			if err != nil {
				f.logger.Warn("extra catalog source failed", "url", u, "error", err)
				return nil
			}
			extras[i] = data
			return nil
		})
	}
	_ = g.Wait()

	var buf bytes.Buffer
	buf.Write(primary)
	for _, data := range extras {
		if len(data) == 0 {
			continue
		}
		if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}

	return body, nil
}
