package output

import (
	"context"
	"fmt"
	"path/filepath"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

const ContentType = "image/png"

// Sink writes one finished artifact to a bucket.
type Sink struct {
	bucket *blob.Bucket
	key    string
}

func NewSink(bucket *blob.Bucket, key string) *Sink {
	return &Sink{bucket: bucket, key: key}
}

// Open returns a sink for output. Without a bucket URL, output is a local
// file path and its directory is opened as a file bucket.
func Open(ctx context.Context, bucketURL, output string) (*Sink, error) {
	if bucketURL != "" {
		bucket, err := blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
		}

		return NewSink(bucket, output), nil
	}

	dir, err := filepath.Abs(filepath.Dir(output))
	if err != nil {
		return nil, err
	}

	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("open output dir %s: %w", dir, err)
	}

	return NewSink(bucket, filepath.Base(output)), nil
}

func (s *Sink) Key() string {
	return s.key
}

// Write stores data under the sink key. The object only becomes visible
// once the write has completed.
func (s *Sink) Write(ctx context.Context, data []byte) error {
	err := s.bucket.WriteAll(ctx, s.key, data, &blob.WriterOptions{ContentType: ContentType})
	if err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}

	return nil
}

// ReadAll reads an object from the sink's bucket.
func (s *Sink) ReadAll(ctx context.Context, key string) ([]byte, error) {
	return s.bucket.ReadAll(ctx, key)
}

func (s *Sink) Close() error {
	return s.bucket.Close()
}
