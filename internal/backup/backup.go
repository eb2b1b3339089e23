// Package backup implements the §6 `backup_config` contract: local
// SQLite snapshots of Store, rotated by count/age, with an optional
// upload to an S3-compatible bucket (adapted from
// internal/reliability/r2_backup_service.go's tar.gz+upload flow).
package backup

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Store is the subset of the persistence layer backup needs.
type Store interface {
	Backup(dest string) error
}

// Uploader puts a local file at a remote key. Satisfied by an
// s3manager.Uploader-backed adapter; nil disables remote upload.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]RemoteObject, error)
	Delete(ctx context.Context, key string) error
}

// RemoteObject is one object returned by Uploader.List.
type RemoteObject struct {
	Key       string
	SizeBytes int64
}

// Config is §6's `backup_config` group.
type Config struct {
	SourceDBPath    string // informational; actual source is Store
	BackupDirectory string
	RetentionDays   int
	FilenamePattern string // default "quotes_backup_%s"; CreateLocal appends ".db"
	MaxBackupFiles  int
	Gzip            bool
}

const defaultFilenamePattern = "quotes_backup_%s"
const minBackupsToKeep = 3

// Service creates, rotates, and optionally uploads Store backups.
type Service struct {
	store    Store
	uploader Uploader
	cfg      Config
	log      zerolog.Logger
}

func New(store Store, uploader Uploader, cfg Config, log zerolog.Logger) *Service {
	if cfg.FilenamePattern == "" {
		cfg.FilenamePattern = defaultFilenamePattern
	}
	return &Service{store: store, uploader: uploader, cfg: cfg, log: log.With().Str("component", "backup").Logger()}
}

// CreateLocal writes a timestamped copy of the store file to
// BackupDirectory, named `quotes_backup_<YYYYmmdd_HHMMSS>.db` (§6),
// optionally gzip-compressed, and returns its path.
func (s *Service) CreateLocal() (string, error) {
	if err := os.MkdirAll(s.cfg.BackupDirectory, 0o755); err != nil {
		return "", fmt.Errorf("backup: create directory: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	base := fmt.Sprintf(s.cfg.FilenamePattern, timestamp) + ".db"
	dest := filepath.Join(s.cfg.BackupDirectory, base)

	if err := s.store.Backup(dest); err != nil {
		return "", fmt.Errorf("backup: snapshot store: %w", err)
	}

	if !s.cfg.Gzip {
		return dest, nil
	}

	gzPath := dest + ".gz"
	if err := gzipFile(dest, gzPath); err != nil {
		return "", fmt.Errorf("backup: gzip snapshot: %w", err)
	}
	if err := os.Remove(dest); err != nil {
		s.log.Warn().Err(err).Str("path", dest).Msg("failed to remove uncompressed snapshot")
	}
	return gzPath, nil
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

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// RotateLocal deletes local backups beyond MaxBackupFiles / older than
// RetentionDays, always keeping at least minBackupsToKeep.
func (s *Service) RotateLocal() error {
	entries, err := os.ReadDir(s.cfg.BackupDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backup: list local backups: %w", err)
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "quotes_backup_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: filepath.Join(s.cfg.BackupDirectory, e.Name()), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	cutoff := time.Time{}
	if s.cfg.RetentionDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	}
	maxFiles := s.cfg.MaxBackupFiles

	for i, f := range files {
		if i < minBackupsToKeep {
			continue
		}
		tooMany := maxFiles > 0 && i >= maxFiles
		tooOld := !cutoff.IsZero() && f.modTime.Before(cutoff)
		if tooMany || tooOld {
			if err := os.Remove(f.path); err != nil {
				s.log.Warn().Err(err).Str("path", f.path).Msg("failed to remove old backup")
				continue
			}
			s.log.Info().Str("path", f.path).Msg("removed old local backup")
		}
	}
	return nil
}

// UploadRemote uploads path to the configured Uploader, if any.
func (s *Service) UploadRemote(ctx context.Context, path string) error {
	if s.uploader == nil {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("backup: stat %s: %w", path, err)
	}

	key := filepath.Base(path)
	if err := s.uploader.Upload(ctx, key, f, info.Size()); err != nil {
		return fmt.Errorf("backup: upload %s: %w", key, err)
	}
	s.log.Info().Str("key", key).Int64("size_bytes", info.Size()).Msg("uploaded backup to remote")
	return nil
}

// RotateRemote deletes remote backups older than RetentionDays, always
// keeping at least minBackupsToKeep (the same floor RotateLocal applies).
func (s *Service) RotateRemote(ctx context.Context) error {
	if s.uploader == nil {
		return nil
	}
	objects, err := s.uploader.List(ctx, "quotes_backup_")
	if err != nil {
		return fmt.Errorf("backup: list remote backups: %w", err)
	}
	if len(objects) <= minBackupsToKeep || s.cfg.RetentionDays <= 0 {
		return nil
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays).UTC().Format("20060102_150405")

	for i, obj := range objects {
		if i < minBackupsToKeep {
			continue
		}
		if extractTimestamp(obj.Key) < cutoff {
			if err := s.uploader.Delete(ctx, obj.Key); err != nil {
				s.log.Warn().Err(err).Str("key", obj.Key).Msg("failed to delete old remote backup")
				continue
			}
			s.log.Info().Str("key", obj.Key).Msg("deleted old remote backup")
		}
	}
	return nil
}

func extractTimestamp(key string) string {
	name := strings.TrimSuffix(strings.TrimSuffix(key, ".gz"), ".db")
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return ""
	}
	// "quotes_backup_20240105_153000" -> "20240105_153000" needs both
	// segments; take the trailing two underscore-delimited fields.
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[len(parts)-2:], "_")
}

// Job runs the full local snapshot, local rotation, remote upload, and
// remote rotation sequence as one scheduler.Job.
type Job struct {
	svc *Service
}

// NewJob wraps svc for scheduler registration under the "backup" job id.
func NewJob(svc *Service) *Job {
	return &Job{svc: svc}
}

func (j *Job) Name() string { return "backup" }

func (j *Job) Run(ctx context.Context) error {
	path, err := j.svc.CreateLocal()
	if err != nil {
		return fmt.Errorf("backup: create local: %w", err)
	}
	if err := j.svc.RotateLocal(); err != nil {
		j.svc.log.Warn().Err(err).Msg("local backup rotation failed")
	}
	if err := j.svc.UploadRemote(ctx, path); err != nil {
		j.svc.log.Warn().Err(err).Msg("remote backup upload failed")
	}
	if err := j.svc.RotateRemote(ctx); err != nil {
		j.svc.log.Warn().Err(err).Msg("remote backup rotation failed")
	}
	return nil
}
