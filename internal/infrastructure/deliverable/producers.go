// Package deliverable produces the placeholder media a purchase pays for.
package deliverable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/credit-relay/internal/domain"
)

// DefaultAudioCandidates are public samples tried after AUDIO_SOURCE_URL.
var DefaultAudioCandidates = []string{
	"https://interactive-examples.mdn.mozilla.net/media/cc0-audio/t-rex-roar.mp3",
	"https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3",
}

// Image fetches a placeholder image and reports where it ended up after redirects.
type Image struct {
	client *http.Client
	source string
}

func NewImage(client *http.Client, source string) *Image {
	return &Image{client: client, source: source}
}

func (p *Image) Produce(ctx context.Context) (*domain.Deliverable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image fetch failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image read: %w", err)
	}
	if n == 0 {
		return nil, errors.New("image fetch returned an empty body")
	}
	return &domain.Deliverable{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        n,
	}, nil
}

// Audio returns the first candidate URL that serves audio within the probe timeout.
type Audio struct {
	client     *http.Client
	candidates []string
	timeout    time.Duration
}

// NewAudio tries preferred (when set) before the default candidates.
func NewAudio(client *http.Client, preferred string, timeout time.Duration) *Audio {
	var candidates []string
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	candidates = append(candidates, DefaultAudioCandidates...)
	return &Audio{client: client, candidates: candidates, timeout: timeout}
}

func (p *Audio) Produce(ctx context.Context) (*domain.Deliverable, error) {
	var errs []error
	for _, u := range p.candidates {
		d, err := p.probe(ctx, u)
		if err == nil {
			return d, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("audio candidate rejected", "url", u, "err", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("no playable audio source: %w", errors.Join(errs...))
}

func (p *Audio) probe(ctx context.Context, u string) (*domain.Deliverable, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-1023")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d", u, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "audio/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("%s: not audio (%q)", u, ct)
	}
	if n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)); n == 0 {
		return nil, fmt.Errorf("%s: empty body", u)
	}
	return &domain.Deliverable{URL: u, ContentType: ct}, nil
}
