package usecase

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"learnplatform/internal/domain"
)

const (
	UploadVideo     = "video"
	UploadThumbnail = "thumbnail"
)

type UploadTicket struct {
	UploadURL string    `json:"uploadUrl"`
	FileURL   string    `json:"fileUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type UploadUseCase struct {
	presigner       Presigner
	videoBucket     string
	thumbnailBucket string
}

func NewUploadUseCase(presigner Presigner, videoBucket, thumbnailBucket string) *UploadUseCase {
	return &UploadUseCase{presigner: presigner, videoBucket: videoBucket, thumbnailBucket: thumbnailBucket}
}

// Presign returns a one-off PUT URL for a course video or thumbnail. Objects
// land under "<type>s/<uuid>-<file name>".
func (uc *UploadUseCase) Presign(ctx context.Context, uploadType, fileName, contentType string) (*UploadTicket, error) {
	var bucket, wantPrefix string
	switch uploadType {
	case UploadVideo:
		bucket, wantPrefix = uc.videoBucket, "video/"
	case UploadThumbnail:
		bucket, wantPrefix = uc.thumbnailBucket, "image/"
	default:
		return nil, domain.Validation("Upload type must be video or thumbnail")
	}
	if !strings.HasPrefix(contentType, wantPrefix) {
		return nil, domain.Validation("Content type %s does not match a %s upload", contentType, uploadType)
	}
	name := unsafeFileChars.ReplaceAllString(path.Base(strings.ReplaceAll(fileName, `\`, "/")), "_")
	if name == "" || name == "." || name == "/" {
		return nil, domain.Validation("File name is required")
	}

	key := uploadType + "s/" + uuid.NewString() + "-" + name
	url, expiresAt, err := uc.presigner.PresignPut(ctx, bucket, key, contentType)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{
		UploadURL: url,
		FileURL:   uc.presigner.ObjectURL(bucket, key),
		Key:       key,
		ExpiresAt: expiresAt,
	}, nil
}
