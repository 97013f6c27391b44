// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/config"
	"github.com/javajoker/claimdesk-backend/internal/utils"
)

// ObjectStore keeps document bytes. The ledger only records the returned reference.
type ObjectStore interface {
	Put(fileName string, data []byte, contentType string, options UploadOptions) (*UploadResult, error)
	Delete(key string) error
	PresignedURL(key string, expiration time.Duration) (string, error)
}

type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
	log      logrus.FieldLogger
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Checksum string `json:"checksum"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

func NewStorageService(config *config.Config, log logrus.FieldLogger) (*StorageService, error) {
	log = log.WithField("component", "storage")

	if config.AWS.AccessKeyID == "" {
		// Local disk for development and tests
		return &StorageService{config: config, log: log}, nil
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	}
	if config.AWS.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.AWS.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	// Create AWS session
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
		log:      log,
	}, nil
}

// ValidateUpload checks size and extension before anything is stored.
func ValidateUpload(fileName string, size int64, options UploadOptions) error {
	if size == 0 {
		return fmt.Errorf("file is empty")
	}

	// Validate file size
	if options.MaxSize > 0 && size > options.MaxSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size %d bytes", size, options.MaxSize)
	}

	// Validate file type
	if len(options.AllowedTypes) > 0 {
		fileExt := strings.ToLower(filepath.Ext(fileName))
		for _, allowedType := range options.AllowedTypes {
			if fileExt == allowedType {
				return nil
			}
		}
		return fmt.Errorf("file type %s is not allowed", fileExt)
	}

	return nil
}

func (s *StorageService) Put(fileName string, data []byte, contentType string, options UploadOptions) (*UploadResult, error) {
	if err := ValidateUpload(fileName, int64(len(data)), options); err != nil {
		return nil, err
	}

	// Generate unique key
	key := s.generateKey(fileName, options.Folder)

	var result *UploadResult
	var err error
	if s.s3Client != nil {
		result, err = s.uploadToS3(data, key, contentType)
	} else {
		result, err = s.uploadToLocal(data, key, contentType)
	}
	if err != nil {
		return nil, err
	}

	result.Checksum = utils.Checksum(data)
	return result, nil
}

func (s *StorageService) uploadToS3(fileBytes []byte, key, contentType string) (*UploadResult, error) {
	// Claim documents are private, no ACL
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	}

	if _, err := s.s3Client.PutObject(params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.getS3URL(key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) uploadToLocal(fileBytes []byte, key, contentType string) (*UploadResult, error) {
	path := filepath.Join(s.config.Documents.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(path, fileBytes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &UploadResult{
		URL:      "/uploads/" + key,
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) Delete(key string) error {
	if s.s3Client == nil {
		path := filepath.Join(s.config.Documents.LocalPath, filepath.FromSlash(key))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}

func (s *StorageService) PresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "/uploads/" + key, nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

// DocumentLimits are the size and type limits applied to every claim document.
func DocumentLimits(cfg config.DocumentConfig) UploadOptions {
	return UploadOptions{
		MaxSize:      int64(cfg.MaxSizeMB) * 1024 * 1024,
		AllowedTypes: cfg.AllowedExtensions,
	}
}

func (s *StorageService) generateKey(originalName, folder string) string {
	// Get file extension
	ext := strings.ToLower(filepath.Ext(originalName))

	// Create filename with timestamp and UUID
	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, uuid.New().String(), ext)

	if folder != "" {
		return fmt.Sprintf("%s/%s", folder, filename)
	}

	return filename
}

func (s *StorageService) getS3URL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}
