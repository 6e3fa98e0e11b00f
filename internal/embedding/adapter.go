package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lingualign/internal/align"
)

// BatchEmbedder is the provider boundary. A batch either returns one vector
// per input text, in the same order, or fails as a whole.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderFunc adapts a plain function to BatchEmbedder.
type ProviderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f ProviderFunc) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// Options bound the adapter's fan-out and retry behavior.
type Options struct {
	BatchSize      int
	MaxConcurrency int
	RetryAttempts  int
	RetryDelay     time.Duration
	Timeout        time.Duration
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 3
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
}

// Report summarizes one Embed call. BatchErrors holds the per-batch
// failures that were downgraded to skipped rows.
type Report struct {
	Embedded    int
	Skipped     int
	Failed      int
	Dimensions  int
	BatchErrors []error
}

// Adapter turns a row set into embedded rows through the provider, batch by
// batch, with a bounded number of batches in flight.
type Adapter struct {
	provider BatchEmbedder
	opts     Options
}

func NewAdapter(provider BatchEmbedder, opts Options) *Adapter {
	opts.applyDefaults()
	return &Adapter{provider: provider, opts: opts}
}

// Embed fills in the Embedding field of every eligible row in the set.
// Vectors are written back to the rows they belong to, so the outcome does
// not depend on the order in which batches complete. Batches that fail all
// retries mark their rows as embed-failed and the run continues; the call
// fails outright only when no row at all succeeded, when the provider
// returns inconsistent dimensions, or when ctx is cancelled.
func (a *Adapter) Embed(ctx context.Context, set *align.ContentSet) (*Report, error) {
	var eligible []*align.ContentRow
	for _, row := range set.Rows {
		if row.Eligible() {
			eligible = append(eligible, row)
		}
	}

	report := &Report{Skipped: set.Len() - len(eligible)}
	if len(eligible) == 0 {
		return report, nil
	}

	batches := partition(eligible, a.opts.BatchSize)

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		fatal error
		sem   = make(chan struct{}, a.opts.MaxConcurrency)
	)

	for i, batch := range batches {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		}

		wg.Add(1)
		go func(index int, rows []*align.ContentRow) {
			defer wg.Done()
			defer func() { <-sem }()

			vectors, err := a.embedBatch(ctx, rows)
			mu.Lock()
			defer mu.Unlock()
			if fatal != nil {
				return
			}
			if err != nil {
				slog.Warn("embedding batch failed, rows downgraded to unmatched",
					"batch", index, "rows", len(rows), "error", err)
				for _, row := range rows {
					row.Skip = align.SkipEmbedFailed
				}
				report.Failed += len(rows)
				report.BatchErrors = append(report.BatchErrors, fmt.Errorf("batch %d: %w", index, err))
				return
			}
			for j, row := range rows {
				if report.Dimensions == 0 {
					report.Dimensions = len(vectors[j])
				} else if len(vectors[j]) != report.Dimensions {
					fatal = &align.DimensionMismatchError{
						Want: report.Dimensions,
						Got:  len(vectors[j]),
					}
					return
				}
				row.Embedding = vectors[j]
				report.Embedded++
			}
		}(i, batch)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fatal != nil {
		return nil, fatal
	}
	if report.Embedded == 0 {
		return nil, fmt.Errorf("%w: no rows embedded (%d batches failed)",
			align.ErrEmbedding, len(report.BatchErrors))
	}
	return report, nil
}

// embedBatch issues one provider call with bounded retries and a per-call
// timeout. Backoff grows linearly with the attempt number.
func (a *Adapter) embedBatch(ctx context.Context, rows []*align.ContentRow) ([][]float32, error) {
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Normalized
	}

	var lastErr error
	for attempt := 1; attempt <= a.opts.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		vectors, err := a.provider.EmbedBatch(callCtx, texts)
		cancel()
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
			}
			return vectors, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < a.opts.RetryAttempts {
			select {
			case <-time.After(a.opts.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func partition(rows []*align.ContentRow, size int) [][]*align.ContentRow {
	var out [][]*align.ContentRow
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
