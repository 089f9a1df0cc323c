// Package backup snapshots the SQLite database, encrypts the snapshot, and
// uploads it to S3-compatible storage. Snapshots use VACUUM INTO so the copy
// is consistent without pausing writers.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/store"
)

// s3Client is the slice of the S3 API the manager uses, as an interface for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds S3 target and encryption settings. The manager is disabled
// when Bucket or Passphrase is empty.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
}

type Manager struct {
	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	client  s3Client
	logger  *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		logger:  logger.With("component", "backup"),
	}
	if cfg.Bucket != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool { return m.client != nil }

// Run takes one snapshot, encrypts it, and uploads it. The backup row records
// the outcome either way.
func (m *Manager) Run(ctx context.Context) (*model.Backup, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("backups are not configured")
	}

	key := time.Now().UTC().Format("2006/01/02/") + uuid.NewString() + ".db.enc"
	rec, err := m.backups.Create(key)
	if err != nil {
		return nil, err
	}

	size, err := m.upload(ctx, key)
	if err != nil {
		m.logger.Error("backup failed", "backup_id", rec.ID, "error", err)
		if markErr := m.backups.MarkFailed(rec.ID, err.Error(), time.Now()); markErr != nil {
			m.logger.Error("mark backup failed", "backup_id", rec.ID, "error", markErr)
		}
		return nil, err
	}

	if err := m.backups.MarkCompleted(rec.ID, size, time.Now()); err != nil {
		return nil, err
	}
	m.logger.Info("backup completed", "backup_id", rec.ID, "object_key", key, "size_bytes", size)
	return m.backups.Get(rec.ID)
}

func (m *Manager) upload(ctx context.Context, key string) (int64, error) {
	dir, err := os.MkdirTemp("", "earnit-backup-*")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return 0, fmt.Errorf("vacuum into: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return 0, err
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(sealed),
	})
	if err != nil {
		return 0, fmt.Errorf("put object: %w", err)
	}
	return int64(len(sealed)), nil
}

// Start runs scheduled backups on the given interval until ctx is cancelled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	if !m.Enabled() || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Run(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

func (m *Manager) History(limit int) ([]model.Backup, error) {
	return m.backups.List(limit)
}
