package paster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pyropy/paster/core/config"
	"github.com/pyropy/paster/core/output"
	"github.com/pyropy/paster/lib/checksum"
)

// Result describes a finished run.
type Result struct {
	Image  *AssembledImage
	Key    string
	Digest string
}

// Paster runs one fetch and reassembly cycle for a configured image.
type Paster struct {
	cfg     *config.Config
	fetcher Fetcher
	sink    *output.Sink
	log     *zap.SugaredLogger
	metrics *Metrics
}

func New(cfg *config.Config, f Fetcher, sink *output.Sink, log *zap.SugaredLogger, metrics *Metrics) *Paster {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Paster{
		cfg:     cfg,
		fetcher: f,
		sink:    sink,
		log:     log,
		metrics: metrics,
	}
}

// Run fills a fresh fragment table, reassembles it and writes the result to
// the sink. Nothing is written unless every fragment was collected and the
// image assembled.
func (p *Paster) Run(ctx context.Context) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	urls := p.cfg.WorkerURLs()
	table := NewFragmentTable(p.cfg.Fragments)
	pool := NewPool(table, p.fetcher, p.log, p.metrics, PoolOptions{
		RetryBackoff:    p.cfg.RetryBackoff,
		RetryMaxBackoff: p.cfg.RetryMaxBackoff,
	})

	p.log.Infow("paste", "status", "started", "image", p.cfg.Image, "threads", len(urls), "fragments", table.Len())
	start := time.Now()

	if err := pool.Run(ctx, urls); err != nil {
		p.log.Warnw("paste", "status", "interrupted", "filled", table.Filled(), "missing", len(table.Missing()))
		return nil, fmt.Errorf("collect fragments: %w", err)
	}

	img, err := Build(table)
	if err != nil {
		return nil, err
	}

	if err := p.sink.Write(ctx, img.Encoded); err != nil {
		return nil, err
	}

	res := &Result{
		Image:  img,
		Key:    p.sink.Key(),
		Digest: checksum.Digest(img.Encoded),
	}

	p.log.Infow("paste",
		"status", "finished",
		"output", res.Key,
		"width", img.Header.Width,
		"height", img.Header.Height,
		"bytes", len(img.Encoded),
		"digest", res.Digest,
		"elapsed", time.Since(start),
	)

	return res, nil
}
