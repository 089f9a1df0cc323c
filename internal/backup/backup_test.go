package backup

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/earnit-app/earnit/internal/database"
	"github.com/earnit-app/earnit/internal/model"
	"github.com/earnit-app/earnit/internal/store"
)

type fakeS3 struct {
	objects map[string][]byte
	fail    bool
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func newTestManager(t *testing.T, client s3Client) (*Manager, *store.BackupStore) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backups := store.NewBackupStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(Config{Bucket: "earnit-backups", Passphrase: "family secret"}, db, backups, logger)
	m.client = client
	return m, backups
}

func TestRunUploadsEncryptedSnapshot(t *testing.T) {
	fake := &fakeS3{}
	m, _ := newTestManager(t, fake)

	rec, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Status != model.BackupStatusCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.SizeBytes == 0 {
		t.Error("size not recorded")
	}

	sealed, ok := fake.objects[rec.ObjectKey]
	if !ok {
		t.Fatalf("no object uploaded under %q", rec.ObjectKey)
	}
	plaintext, err := Decrypt(sealed, "family secret")
	if err != nil {
		t.Fatalf("decrypt upload: %v", err)
	}
	if len(plaintext) == 0 {
		t.Error("empty snapshot")
	}
}

func TestRunRecordsFailure(t *testing.T) {
	m, backups := newTestManager(t, &fakeS3{fail: true})

	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("expected upload failure")
	}

	history, err := backups.List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d backup rows, want 1", len(history))
	}
	if history[0].Status != model.BackupStatusFailed {
		t.Errorf("status = %s, want failed", history[0].Status)
	}
	if history[0].ErrorMessage == "" {
		t.Error("failure not recorded")
	}
}

func TestDisabledManager(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(Config{}, db, store.NewBackupStore(db), logger)

	if m.Enabled() {
		t.Error("manager without bucket should be disabled")
	}
	if _, err := m.Run(context.Background()); err == nil {
		t.Error("run on a disabled manager should fail")
	}
}
