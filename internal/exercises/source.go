// ABOUTME: Static exercise sources used when neither cache nor remote has data.
// ABOUTME: An embedded JSON bundle and an HTTP fetcher for a hosted bundle.
package exercises

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harperreed/liftlog/internal/models"
)

//go:embed data/exercises.json
var bundled []byte

// StaticSource supplies a fallback exercise catalog.
type StaticSource interface {
	Exercises(ctx context.Context) ([]*models.Exercise, error)
}

// EmbeddedSource serves the catalog compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Exercises(ctx context.Context) ([]*models.Exercise, error) {
	return parseBundle(bundled)
}

// HTTPSource fetches a JSON array of exercises from URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns an HTTPSource with a bounded client.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{URL: url, Client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *HTTPSource) Exercises(ctx context.Context) ([]*models.Exercise, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", s.URL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URL, err)
	}
	return parseBundle(body)
}

// ChainSource tries each source in order and returns the first success.
type ChainSource []StaticSource

func (c ChainSource) Exercises(ctx context.Context) ([]*models.Exercise, error) {
	var lastErr error
	for _, src := range c {
		ex, err := src.Exercises(ctx)
		if err == nil && len(ex) > 0 {
			return ex, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = ErrEmptyCatalog
	}
	return nil, lastErr
}

func parseBundle(data []byte) ([]*models.Exercise, error) {
	var ex []*models.Exercise
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("parse exercise bundle: %w", err)
	}
	out := ex[:0]
	for _, e := range ex {
		if e != nil && e.ExerciseID != "" {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyCatalog
	}
	return out, nil
}
