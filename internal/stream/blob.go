package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/danphilibin/relay/pkg/api"
)

// BlobStore keeps each run log as an NDJSON object in a gocloud.dev bucket,
// supporting S3, GCS, Azure Blob Storage, local files, and memory
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
}

var _ Store = (*BlobStore)(nil)

// OpenBlobStore opens the bucket at bucketURL (for example "mem://",
// "file:///var/lib/relay" or "s3://bucket?region=us-east-1")
func OpenBlobStore(
	ctx context.Context, bucketURL, prefix string,
) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(bucket, prefix), nil
}

// NewBlobStore creates a store on an already opened bucket
func NewBlobStore(bucket *blob.Bucket, prefix string) *BlobStore {
	return &BlobStore{bucket: bucket, prefix: prefix}
}

func (s *BlobStore) Load(
	ctx context.Context, runID api.RunID,
) ([]*api.Message, error) {
	data, err := s.read(ctx, runID)
	if err != nil {
		return nil, err
	}
	var res []*api.Message
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := api.ParseMessage(line)
		if err != nil {
			return nil, fmt.Errorf("run %s message %d: %w",
				runID, len(res), err)
		}
		res = append(res, msg)
	}
	return res, sc.Err()
}

// Append rewrites the run's object with msg added. Buckets have no append
// primitive; the owning actor guarantees there is a single writer per run
func (s *BlobStore) Append(
	ctx context.Context, runID api.RunID, msg *api.Message,
) error {
	data, err := s.read(ctx, runID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, line...)
	data = append(data, '\n')
	return s.bucket.WriteAll(ctx, s.keyFor(runID), data, &blob.WriterOptions{
		ContentType: "application/x-ndjson",
	})
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func (s *BlobStore) read(ctx context.Context, runID api.RunID) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, s.keyFor(runID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *BlobStore) keyFor(runID api.RunID) string {
	return path.Join(s.prefix, string(runID)+".ndjson")
}
