package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"couple-notes-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadURLExpiry = 5 * time.Minute

// UploadConfig holds the S3 settings for collage image uploads
type UploadConfig struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	PublicURL string
}

// UploadService issues pre-signed URLs for collage images
type UploadService struct {
	profiles  ProfileStore
	presign   *s3.PresignClient
	bucket    string
	publicURL string
}

// NewUploadService creates a new upload service.
// Static credentials are used when both keys are set, the default AWS chain otherwise.
func NewUploadService(ctx context.Context, profiles ProfileStore, cfg UploadConfig) (*UploadService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		if cfg.Endpoint != "" {
			publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &UploadService{
		profiles:  profiles,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		publicURL: publicURL,
	}, nil
}

// UploadRequest represents a request to get a pre-signed URL
type UploadRequest struct {
	ProfileID   string `json:"profileId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// UploadResponse represents the response with pre-signed URL
type UploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	ImageURL  string `json:"imageUrl"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

// PresignImage generates a pre-signed PUT URL for one collage image
func (s *UploadService) PresignImage(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	if req.ProfileID == "" {
		return nil, models.ValidationError(errors.New("profileId: cannot be blank"))
	}
	if req.Filename == "" {
		return nil, models.ValidationError(errors.New("filename: cannot be blank"))
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return nil, models.ValidationError(errors.New("contentType: must be an image type"))
	}

	if _, err := s.profiles.GetByID(ctx, req.ProfileID); err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(req.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("%s/%s%s", req.ProfileID, uuid.New().String(), ext)

	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(req.ContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		ImageURL:  s.publicURL + "/" + key,
		Key:       key,
		ExpiresIn: int(uploadURLExpiry.Seconds()),
	}, nil
}
