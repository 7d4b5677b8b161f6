package media

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Job is one image to place at a resolved path.
type Job struct {
	URL      string
	DestPath string
}

// Pool fans image fetches out over a bounded set of workers. Image fetches
// for different comments are independent, so order of results is not
// guaranteed.
type Pool struct {
	fetcher *Fetcher
	workers int
}

// NewPool creates a pool. Worker count is clamped to [1, 16].
func NewPool(fetcher *Fetcher, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if workers > 16 {
		workers = 16
	}
	return &Pool{fetcher: fetcher, workers: workers}
}

// FetchAll runs every job and returns all results, including failures.
func (p *Pool) FetchAll(ctx context.Context, jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	in := make(chan Job, len(jobs))
	out := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range in {
				select {
				case <-ctx.Done():
					out <- Result{URL: job.URL, FilePath: job.DestPath, Err: ctx.Err()}
					continue
				default:
				}
				out <- p.fetcher.Fetch(ctx, job.URL, job.DestPath)
			}
		}(w)
	}

	for _, job := range jobs {
		in <- job
	}
	close(in)
	wg.Wait()
	close(out)

	results := make([]Result, 0, len(jobs))
	failures := 0
	for r := range out {
		if r.Err != nil {
			failures++
		}
		results = append(results, r)
	}
	if failures > 0 {
		log.Warn().Int("failed", failures).Int("total", len(jobs)).Msg("Some image downloads failed")
	}
	return results
}
