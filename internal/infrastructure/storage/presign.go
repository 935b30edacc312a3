// Package storage hands out pre-signed S3 URLs so clients upload media
// straight to the bucket.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Presigner struct {
	client *s3.PresignClient
	region string
	ttl    time.Duration
	now    func() time.Time
}

func NewPresigner(cfg aws.Config, ttl time.Duration) *Presigner {
	return &Presigner{
		client: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		region: cfg.Region,
		ttl:    ttl,
		now:    time.Now,
	}
}

// PresignPut returns a URL accepting one PUT of key into bucket with the given
// content type, and the moment it stops working.
func (p *Presigner) PresignPut(ctx context.Context, bucket, key, contentType string) (string, time.Time, error) {
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign put %s/%s: %w", bucket, key, err)
	}
	return req.URL, p.now().Add(p.ttl), nil
}

// ObjectURL is the public address of key once uploaded.
func (p *Presigner) ObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, p.region, key)
}
