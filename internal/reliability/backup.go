package reliability

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pojakpijak/H-5N1P3R/internal/database"
	"github.com/pojakpijak/H-5N1P3R/pkg/logger"
)

const backupPrefix = "oracle-backup-"

// BackupInfo describes one stored backup.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// Uploader is the bucket capability the backup service needs. *S3Client
// satisfies it; tests substitute a fake.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// BackupService snapshots the decisions database and ships a gzip copy to
// off-site storage.
type BackupService struct {
	db       *database.DB
	uploader Uploader
	client   *S3Client // nil when only local snapshots are configured
	dataDir  string
	log      zerolog.Logger
}

// NewBackupService builds the backup service. client may be nil; then
// ListBackups and RotateOldBackups are unavailable.
func NewBackupService(db *database.DB, uploader Uploader, client *S3Client, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:       db,
		uploader: uploader,
		client:   client,
		dataDir:  dataDir,
		log:      logger.Component(log, "backup_service"),
	}
}

// CreateAndUploadBackup checkpoints the WAL, snapshots the database into a
// staging directory, gzips the snapshot, and uploads it.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting ledger backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	if err := s.db.QuickCheck(ctx); err != nil {
		return fmt.Errorf("database unreachable, skipping backup: %w", err)
	}

	// Fold the WAL into the main file first so the snapshot is complete.
	if err := s.db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("failed to checkpoint before backup: %w", err)
	}

	snapshotPath := filepath.Join(stagingDir, "decisions.db")
	if err := s.snapshotDatabase(snapshotPath); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}

	checksum, err := checksumFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to checksum snapshot: %w", err)
	}

	archiveName := fmt.Sprintf("%s%s.db.gz", backupPrefix, time.Now().Format("2006-01-02-150405"))
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := gzipFile(snapshotPath, archivePath); err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	archiveInfo, err := archiveFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := s.uploader.Upload(ctx, archiveName, archiveFile); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Str("checksum", checksum).
		Msg("Ledger backup completed")

	return nil
}

// snapshotDatabase copies the live database into dest using VACUUM INTO,
// which produces a consistent snapshot without blocking writers.
func (s *BackupService) snapshotDatabase(dest string) error {
	// VACUUM INTO refuses to overwrite.
	_ = os.Remove(dest)
	if _, err := s.db.Exec("VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("vacuum into failed: %w", err)
	}
	return nil
}

// ListBackups lists stored backups, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	if s.client == nil {
		return nil, fmt.Errorf("remote backup storage is not configured")
	}

	objects, err := s.client.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		filename := *obj.Key
		if !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, ".db.gz") {
			continue
		}

		timestampStr := strings.TrimSuffix(strings.TrimPrefix(filename, backupPrefix), ".db.gz")
		timestamp, err := time.Parse("2006-01-02-150405", timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// Keeps a minimum of 3 backups regardless of age; retentionDays 0 keeps
// everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	if s.client == nil {
		return fmt.Errorf("remote backup storage is not configured")
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, backup := range backups {
		if i < minBackupsToKeep {
			continue
		}
		if backup.Timestamp.Before(cutoff) {
			if err := s.client.Delete(ctx, backup.Filename); err != nil {
				s.log.Error().Err(err).
					Str("filename", backup.Filename).
					Msg("Failed to delete old backup")
				continue
			}
			deleted++
		}
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return nil
}

func checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func gzipFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}
