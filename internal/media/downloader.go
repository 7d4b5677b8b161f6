package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/redthread-tools/redthread/internal/ratelimit"
	"github.com/redthread-tools/redthread/internal/retry"
)

const referer = "https://www.xiaohongshu.com/"

// Result reports one image fetch.
type Result struct {
	URL      string
	FilePath string
	Size     int64
	Skipped  bool
	Err      error
}

// Fetcher retrieves comment images over HTTP with pacing and retries. It is
// safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *ratelimit.DomainLimiter
	retryCfg  retry.Config
}

// NewFetcher builds a Fetcher. A nil limiter disables pacing.
func NewFetcher(timeout time.Duration, userAgent string, limiter *ratelimit.DomainLimiter) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		limiter:   limiter,
		retryCfg:  retry.DefaultConfig(),
	}
}

// Fetch downloads one image to destPath. An already-present file is treated
// as fetched and skipped. Failures never panic; they land in Result.Err so a
// bad image cannot take its comment down with it.
func (f *Fetcher) Fetch(ctx context.Context, imageURL, destPath string) Result {
	res := Result{URL: imageURL, FilePath: destPath}

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		res.Skipped = true
		res.Size = info.Size()
		return res
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		res.Err = fmt.Errorf("failed to create image directory: %w", err)
		return res
	}

	res.Err = retry.Do(ctx, f.retryCfg, func() error {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, imageURL); err != nil {
				return err
			}
		}
		n, err := f.fetchOnce(ctx, imageURL, destPath)
		if err == nil {
			res.Size = n
		}
		return err
	})

	if res.Err == nil {
		log.Debug().Str("url", imageURL).Str("file", destPath).Int64("bytes", res.Size).Msg("Image saved")
	}
	return res
}

func (f *Fetcher) fetchOnce(ctx context.Context, imageURL, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Referer", referer)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status: %d %s", resp.StatusCode, resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}
