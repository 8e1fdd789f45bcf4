// Package backup archives the sentinel SQLite database to S3 on a daily
// cadence, config-gated and off by default. Grounded on
// internal/reliability/r2_backup_service.go's workflow (stage into a
// tar.gz with a checksummed metadata manifest, upload, rotate keeping a
// minimum count) adapted from the teacher's multi-database, R2-backed
// layout down to this system's single sentinel.db file on plain AWS S3.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/canslim/sentinel/internal/config"
	"github.com/rs/zerolog"
)

// minBackupsToKeep mirrors r2_backup_service.go's floor: rotation never
// drops below this many snapshots regardless of retention age.
const minBackupsToKeep = 3

// Metadata describes one uploaded snapshot archive.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	DBFile    string    `json:"db_file"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// Info is a listed backup's summary, as reported back by ListBackups.
type Info struct {
	Key       string
	Timestamp time.Time
	SizeBytes int64
}

// Service archives dataDir's sentinel.db to an S3 bucket/prefix.
type Service struct {
	client  *s3.Client
	dataDir string
	bucket  string
	prefix  string
	log     zerolog.Logger
}

// New builds a Service from cfg, loading AWS credentials the default SDK
// way (env vars, shared config, or instance role) rather than requiring
// the caller to hand-build a client.
func New(ctx context.Context, cfg config.BackupConfig, dataDir string, log zerolog.Logger) (*Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &Service{
		client:  s3.NewFromConfig(awsCfg),
		dataDir: dataDir,
		bucket:  cfg.Bucket,
		prefix:  strings.TrimSuffix(cfg.Prefix, "/"),
		log:     log.With().Str("component", "backup").Logger(),
	}, nil
}

// CreateAndUpload snapshots sentinel.db into a staged tar.gz alongside a
// checksummed metadata manifest, then uploads it.
func (s *Service) CreateAndUpload(ctx context.Context) error {
	start := time.Now()
	staging, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	dbPath := filepath.Join(s.dataDir, "sentinel.db")
	stagedDB := filepath.Join(staging, "sentinel.db")
	if err := copyFile(dbPath, stagedDB); err != nil {
		return fmt.Errorf("staging database copy: %w", err)
	}

	info, err := os.Stat(stagedDB)
	if err != nil {
		return fmt.Errorf("stat staged database: %w", err)
	}
	checksum, err := checksumFile(stagedDB)
	if err != nil {
		return fmt.Errorf("checksum staged database: %w", err)
	}

	meta := Metadata{
		Timestamp: time.Now().UTC(),
		DBFile:    "sentinel.db",
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	metaPath := filepath.Join(staging, "backup-metadata.json")
	if err := writeMetadata(metaPath, meta); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	archiveName := fmt.Sprintf("sentinel-backup-%s.tar.gz", time.Now().Format("2006-01-02-150405"))
	archivePath := filepath.Join(staging, archiveName)
	if err := createArchive(archivePath, staging, []string{"sentinel.db", "backup-metadata.json"}); err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archiveFile.Close()

	key := s.objectKey(archiveName)
	uploader := manager.NewUploader(s.client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   archiveFile,
	}); err != nil {
		return fmt.Errorf("uploading to s3: %w", err)
	}

	s.log.Info().
		Str("archive", archiveName).
		Dur("duration", time.Since(start)).
		Int64("size_bytes", info.Size()).
		Msg("backup uploaded")
	return nil
}

// ListBackups enumerates archives under the configured prefix, newest
// first.
func (s *Service) ListBackups(ctx context.Context) ([]Info, error) {
	prefix := s.objectKey("sentinel-backup-")
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("listing s3 objects: %w", err)
	}

	backups := make([]Info, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		filename := filepath.Base(*obj.Key)
		ts, err := parseBackupTimestamp(filename)
		if err != nil {
			s.log.Warn().Str("key", *obj.Key).Msg("skipping unparseable backup filename")
			continue
		}
		size := int64(0)
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, Info{Key: *obj.Key, Timestamp: ts, SizeBytes: size})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// RotateOldBackups deletes archives older than retentionDays, always
// keeping at least minBackupsToKeep regardless of age. retentionDays <= 0
// keeps everything.
func (s *Service) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, b := range backups {
		if i < minBackupsToKeep || !b.Timestamp.Before(cutoff) {
			continue
		}
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &b.Key}); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("failed to delete old backup")
			continue
		}
		deleted++
	}
	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("backup rotation completed")
	return nil
}

func (s *Service) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func parseBackupTimestamp(filename string) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(filename, "sentinel-backup-"), ".tar.gz")
	return time.Parse("2006-01-02-150405", trimmed)
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

func writeMetadata(path string, meta Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gzw := gzip.NewWriter(archiveFile)
	defer gzw.Close()
	tw := tar.NewWriter(gzw)
	defer tw.Close()

	for _, name := range filenames {
		if err := addFileToArchive(tw, filepath.Join(sourceDir, name), name); err != nil {
			return err
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header := &tar.Header{Name: nameInArchive, Size: info.Size(), Mode: int64(info.Mode()), ModTime: info.ModTime()}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
