package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignPut(t *testing.T) {
	cfg := aws.Config{
		Region:      "eu-west-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	p := NewPresigner(cfg, 15*time.Minute)
	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	raw, expires, err := p.PresignPut(context.Background(), "videos-bucket", "videos/abc-intro.mp4", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(15*time.Minute), expires)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Contains(t, u.Host, "videos-bucket")
	assert.Equal(t, "/videos/abc-intro.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	assert.Equal(t, "https://videos-bucket.s3.eu-west-1.amazonaws.com/videos/abc-intro.mp4",
		p.ObjectURL("videos-bucket", "videos/abc-intro.mp4"))
}
