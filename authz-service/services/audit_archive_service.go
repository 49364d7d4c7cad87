package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gorm.io/gorm"

	"rentcore-backend/shared/config"
	"rentcore-backend/shared/database/models"
)

// AuditArchiveService exports audit log ranges to object storage. Archives
// are JSON-lines objects keyed by organization and time window; the rows
// stay in the database, export never deletes.
type AuditArchiveService struct {
	client     *minio.Client
	bucketName string
	db         *gorm.DB
}

// NewAuditArchiveService connects to MinIO and ensures the archive bucket
// exists.
func NewAuditArchiveService(db *gorm.DB) (*AuditArchiveService, error) {
	cfg := config.GetConfig()

	parsedURL, err := url.Parse(cfg.MinIOServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MinIO endpoint: %v", err)
	}

	log.Printf("🔗 Connecting to MinIO: %s (SSL: %v)", parsedURL.Host, cfg.MinIOUseSSL)

	minioClient, err := minio.New(parsedURL.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIORootUser, cfg.MinIORootPassword, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	service := &AuditArchiveService{
		client:     minioClient,
		bucketName: cfg.MinIOBucketName,
		db:         db,
	}

	if err := service.initializeBucket(); err != nil {
		return nil, err
	}

	return service, nil
}

func (s *AuditArchiveService) initializeBucket() error {
	ctx := context.Background()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("✅ MinIO bucket '%s' created successfully", s.bucketName)
	}

	return nil
}

// ArchiveResult describes a completed export.
type ArchiveResult struct {
	ObjectName string `json:"object_name"`
	Entries    int    `json:"entries"`
	SizeBytes  int64  `json:"size_bytes"`
}

// ExportRange writes an organization's audit entries inside [since, until]
// as a JSON-lines object.
func (s *AuditArchiveService) ExportRange(ctx context.Context, orgID uuid.UUID, since, until time.Time) (*ArchiveResult, error) {
	var entries []models.AuditLog
	query := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if !until.IsZero() {
		query = query.Where("created_at <= ?", until)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load audit entries: %v", err)
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for i := range entries {
		if err := encoder.Encode(&entries[i]); err != nil {
			return nil, fmt.Errorf("failed to encode audit entry: %v", err)
		}
	}

	objectName := fmt.Sprintf("audit/%s/%s_%s.jsonl",
		orgID,
		since.UTC().Format("20060102T150405Z"),
		until.UTC().Format("20060102T150405Z"),
	)

	info, err := s.client.PutObject(ctx, s.bucketName, objectName,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"})
	if err != nil {
		return nil, fmt.Errorf("failed to upload archive: %v", err)
	}

	log.Printf("📦 Audit archive uploaded: %s (%d entries, %d bytes)", objectName, len(entries), info.Size)

	return &ArchiveResult{
		ObjectName: objectName,
		Entries:    len(entries),
		SizeBytes:  info.Size,
	}, nil
}
