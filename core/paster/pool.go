package paster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pyropy/paster/core/container"
	"github.com/pyropy/paster/core/fetcher"
	"github.com/pyropy/paster/core/model"
)

// Fetcher performs one fragment request.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// PoolOptions configures worker retry behaviour.
type PoolOptions struct {
	// RetryBackoff is the delay after the first consecutive fetch failure.
	// Default: 100ms
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the delay. Default: 5s
	RetryMaxBackoff time.Duration
}

// Pool runs workers that race to fill a FragmentTable.
type Pool struct {
	table   *FragmentTable
	fetcher Fetcher
	log     *zap.SugaredLogger
	metrics *Metrics
	opts    PoolOptions
}

func NewPool(table *FragmentTable, f Fetcher, log *zap.SugaredLogger, metrics *Metrics, opts PoolOptions) *Pool {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = 5 * time.Second
	}
	if opts.RetryMaxBackoff < opts.RetryBackoff {
		opts.RetryMaxBackoff = opts.RetryBackoff
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Pool{
		table:   table,
		fetcher: f,
		log:     log,
		metrics: metrics,
		opts:    opts,
	}
}

// Run starts one worker per URL and blocks until all of them have exited.
// Workers only stop early when ctx is cancelled, in which case Run returns
// the context error.
func (p *Pool) Run(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return errors.New("pool: no worker urls")
	}

	g, gCtx := errgroup.WithContext(ctx)

	for i, url := range urls {
		id, url := i, url
		g.Go(func() error {
			return p.work(gCtx, id, url)
		})
	}

	return g.Wait()
}

func (p *Pool) work(ctx context.Context, id int, url string) error {
	log := p.log.With("worker", id, "url", url)
	log.Debugw("worker", "status", "started")

	failures := 0
	for !p.table.IsComplete() {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		resp, err := p.fetcher.Fetch(ctx, url)
		p.metrics.FetchDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			failures++
			p.metrics.Fetches.WithLabelValues(resultError).Inc()
			log.Debugw("fetch", "error", err, "failures", failures)

			if err := p.backoff(ctx, failures); err != nil {
				return err
			}
			continue
		}

		failures = 0
		p.metrics.Fetches.WithLabelValues(resultOK).Inc()

		// Completed by another worker while this fetch was in flight.
		if p.table.IsComplete() {
			p.metrics.Dropped.WithLabelValues(reasonLate).Inc()
			break
		}

		p.store(log, resp)
	}

	log.Debugw("worker", "status", "finished")
	return nil
}

func (p *Pool) store(log *zap.SugaredLogger, resp *fetcher.Response) {
	frag, err := DecodeFragment(resp)
	if err != nil {
		reason := reasonDecode
		if errors.Is(err, ErrOutOfRange) {
			reason = reasonOutOfRange
		}
		p.metrics.Dropped.WithLabelValues(reason).Inc()
		log.Debugw("decode", "sequence", resp.Sequence, "error", err)
		return
	}

	stored, err := p.table.TryStore(frag)
	if err != nil {
		p.metrics.Dropped.WithLabelValues(reasonOutOfRange).Inc()
		log.Debugw("store", "sequence", frag.Sequence, "error", err)
		return
	}
	if !stored {
		p.metrics.Dropped.WithLabelValues(reasonDuplicate).Inc()
		return
	}

	p.metrics.Stored.Inc()
	p.metrics.Filled.Inc()
	log.Infow("store", "sequence", frag.Sequence, "height", frag.Header.Height, "filled", p.table.Filled())
}

// backoff waits for an exponentially increasing duration with jitter.
func (p *Pool) backoff(ctx context.Context, failures int) error {
	shift := failures - 1
	if shift > 16 {
		shift = 16
	}

	backoff := p.opts.RetryBackoff * time.Duration(1<<uint(shift))
	if backoff > p.opts.RetryMaxBackoff {
		backoff = p.opts.RetryMaxBackoff
	}

	// 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DecodeFragment validates the sequence header and decodes the body.
func DecodeFragment(resp *fetcher.Response) (model.Fragment, error) {
	if resp.Sequence < 0 || resp.Sequence > math.MaxUint32 {
		return model.Fragment{}, fmt.Errorf("%w: %d", ErrOutOfRange, resp.Sequence)
	}

	img, err := container.Decode(resp.Body)
	if err != nil {
		return model.Fragment{}, err
	}

	return model.NewFragment(uint32(resp.Sequence), img), nil
}
