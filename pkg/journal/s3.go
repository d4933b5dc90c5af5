package journal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the journal uses. *s3.Client
// satisfies it, and so does any test double. It also satisfies
// s3.ListObjectsV2APIClient, so the SDK paginator accepts it directly.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Journal persists payloads as one object per revision under a key
// prefix. Revision keys are zero-padded to 20 digits so S3's
// lexicographic listing order matches numeric revision order for the
// full uint64 range.
type S3Journal struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 returns a journal writing to bucket under prefix. The prefix
// should end with a separator when one is wanted, e.g. "journal/".
func NewS3(client S3API, bucket, prefix string) *S3Journal {
	return &S3Journal{client: client, bucket: bucket, prefix: prefix}
}

func (j *S3Journal) key(revision uint64) string {
	return fmt.Sprintf("%s%020d", j.prefix, revision)
}

// Append uploads the payload as the object for revision.
func (j *S3Journal) Append(ctx context.Context, revision uint64, payload []byte) error {
	_, err := j.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(j.bucket),
		Key:         aws.String(j.key(revision)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("journal: put revision %d: %w", revision, err)
	}
	return nil
}

// Replay lists objects after the key for after and fetches each one in
// order. S3 lists keys after StartAfter exclusively, which is exactly
// the revision > after contract. Objects under the prefix whose keys do
// not parse as revisions are skipped.
func (j *S3Journal) Replay(ctx context.Context, after uint64, fn func(revision uint64, payload []byte) error) error {
	paginator := s3.NewListObjectsV2Paginator(j.client, &s3.ListObjectsV2Input{
		Bucket:     aws.String(j.bucket),
		Prefix:     aws.String(j.prefix),
		StartAfter: aws.String(j.key(after)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("journal: list: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			revision, err := strconv.ParseUint(strings.TrimPrefix(key, j.prefix), 10, 64)
			if err != nil {
				continue
			}
			payload, err := j.fetch(ctx, key)
			if err != nil {
				return fmt.Errorf("journal: get revision %d: %w", revision, err)
			}
			if err := fn(revision, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (j *S3Journal) fetch(ctx context.Context, key string) ([]byte, error) {
	resp, err := j.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Close is a no-op; the S3 client is owned by the caller.
func (j *S3Journal) Close() error {
	return nil
}
