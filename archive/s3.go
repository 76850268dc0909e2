// Package archive mirrors published status-list bitmaps to S3 for
// durability beyond the primary database, using the default AWS
// credential chain via aws-sdk-go-v2/config.
package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver writes status-list bitmaps to one S3 bucket, keyed by
// list ID.
type Archiver struct {
	client *s3.Client
	bucket string
}

// New loads the default AWS config (environment, shared config file,
// or EC2/ECS role, in that order) and returns an Archiver targeting
// bucket.
func New(ctx context.Context, bucket string) (*Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: loading AWS config: %w", err)
	}
	return &Archiver{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Put uploads bitmap under "statuslists/<listID>.bin". It is called
// after a successful publish; failures are logged by the caller and
// never roll back the publish itself, since S3 is a durability
// backstop, not the source of truth.
func (a *Archiver) Put(ctx context.Context, listID string, bitmap []byte) error {
	key := "statuslists/" + listID + ".bin"
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(bitmap),
	})
	if err != nil {
		return fmt.Errorf("archive: uploading %s: %w", key, err)
	}
	return nil
}

// Get fetches a previously archived bitmap, for disaster recovery
// tooling; nothing in the request path calls this.
func (a *Archiver) Get(ctx context.Context, listID string) ([]byte, error) {
	key := "statuslists/" + listID + ".bin"
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: fetching %s: %w", key, err)
	}
	defer out.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("archive: reading %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
