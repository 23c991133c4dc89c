package paster

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gocloud.dev/blob/memblob"

	"github.com/pyropy/paster/core/config"
	"github.com/pyropy/paster/core/fetcher"
	"github.com/pyropy/paster/core/fragserver"
	"github.com/pyropy/paster/core/output"
	"github.com/pyropy/paster/lib/checksum"
)

func newFragmentServer(t *testing.T, image, strips int) *httptest.Server {
	t.Helper()

	src, err := fragserver.Pattern(12, 25, uint8(image))
	if err != nil {
		t.Fatalf("Pattern: %v", err)
	}
	set, err := fragserver.Split(src, strips)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	srv := fragserver.NewServer(zaptest.NewLogger(t).Sugar(), fragserver.Options{})
	srv.AddSet(image, set)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func testConfig(servers ...string) *config.Config {
	cfg := config.Default()
	cfg.Servers = servers
	cfg.Image = 2
	cfg.Threads = 3
	cfg.Fragments = 5
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryMaxBackoff = 2 * time.Millisecond

	return &cfg
}

func TestPasterRun(t *testing.T) {
	ts := newFragmentServer(t, 2, 5)
	sink := output.NewSink(memblob.OpenBucket(nil), "all.png")
	defer sink.Close()

	p := New(testConfig(ts.URL), fetcher.NewClient(fetcher.DefaultOptions()), sink, zaptest.NewLogger(t).Sugar(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := sink.ReadAll(ctx, "all.png")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(data, res.Image.Encoded) {
		t.Fatal("written artifact differs from result")
	}
	if res.Digest != checksum.Digest(data) {
		t.Fatalf("digest %s does not match artifact", res.Digest)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image/png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 25 {
		t.Fatalf("bounds %v, want 12x25", b)
	}
}

func TestPasterInvalidConfig(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Image = 4

	sink := output.NewSink(memblob.OpenBucket(nil), "all.png")
	defer sink.Close()

	p := New(cfg, fetchFunc(nil), sink, zaptest.NewLogger(t).Sugar(), nil)
	if _, err := p.Run(context.Background()); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestPasterCancelledWritesNothing(t *testing.T) {
	// image 2 is never served, every fetch gets a 404
	ts := newFragmentServer(t, 1, 5)

	sink := output.NewSink(memblob.OpenBucket(nil), "all.png")
	defer sink.Close()

	p := New(testConfig(ts.URL), fetcher.NewClient(fetcher.DefaultOptions()), sink, zaptest.NewLogger(t).Sugar(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	if _, err := sink.ReadAll(context.Background(), "all.png"); err == nil {
		t.Fatal("output written for an interrupted run")
	}
}
