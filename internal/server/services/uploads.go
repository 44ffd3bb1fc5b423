package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/media"
	sc "github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	now = time.Now
)

// UploadRequest describes an asset a device is about to upload.
type UploadRequest struct {
	AssetID     string
	RecordID    string
	FileName    string
	ContentType string
	Size        int64
	Checksum    string
}

// UploadTarget is where the device PUTs the bytes and where they can be read
// afterwards.
type UploadTarget struct {
	Key       string
	UploadURL string
	PublicURL string
}

type UploadService interface {
	PresignUpload(ctx context.Context, req UploadRequest) (*UploadTarget, error)
}

type uploadService struct {
	config *sc.Config
}

func NewUploadService(config *sc.Config) UploadService {
	return &uploadService{config: config}
}

// StorageKey builds a date-partitioned object key for an asset. The
// extension follows the content type, so client file names never reach the
// key.
func StorageKey(t time.Time, contentType string) string {
	return fmt.Sprintf("assets/%d/%02d/%02d/%v%s", t.Year(), t.Month(), t.Day(), uuid.New(), media.Extension(contentType))
}

func (s *uploadService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

func (s *uploadService) PresignUpload(ctx context.Context, req UploadRequest) (*UploadTarget, error) {
	if req.AssetID == "" {
		return nil, fmt.Errorf("%w: asset id required", common.ErrInvalidChange)
	}
	if !media.IsAccepted(req.ContentType) {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedType, req.ContentType)
	}
	if req.Size <= 0 || req.Size > common.MaxAssetSize {
		return nil, fmt.Errorf("%w: %d bytes", common.ErrQuotaExceeded, req.Size)
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := StorageKey(now().UTC(), req.ContentType)
	contentType := media.Normalize(req.ContentType)

	in := &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}

	signed, err := presignPutObject(presignClient, ctx, in, s3.WithPresignExpires(s.config.PresignExpiry))
	if err != nil {
		return nil, err
	}

	return &UploadTarget{
		Key:       key,
		UploadURL: signed.URL,
		PublicURL: PublicURL(s.config.PublicBaseURL, key),
	}, nil
}

// PublicURL joins base and key with exactly one slash.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + path.Clean(strings.TrimLeft(key, "/"))
}
