package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackupTimestampRoundTrips(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 22, 0, time.UTC)
	name := "sentinel-backup-" + ts.Format("2006-01-02-150405") + ".tar.gz"

	parsed, err := parseBackupTimestamp(name)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}

func TestParseBackupTimestampRejectsGarbage(t *testing.T) {
	_, err := parseBackupTimestamp("not-a-backup.tar.gz")
	assert.Error(t, err)
}

func TestChecksumFileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello sentinel"), 0644))

	sum1, err := checksumFile(path)
	require.NoError(t, err)
	sum2, err := checksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2)
	assert.Contains(t, sum1, "sha256:")
}

func TestCreateArchiveAndMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sentinel.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("fake sqlite contents"), 0644))

	meta := Metadata{Timestamp: time.Now(), DBFile: "sentinel.db", SizeBytes: 21, Checksum: "sha256:deadbeef"}
	metaPath := filepath.Join(dir, "backup-metadata.json")
	require.NoError(t, writeMetadata(metaPath, meta))
	assert.FileExists(t, metaPath)

	archivePath := filepath.Join(dir, "out.tar.gz")
	require.NoError(t, createArchive(archivePath, dir, []string{"sentinel.db", "backup-metadata.json"}))
	assert.FileExists(t, archivePath)

	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCopyFilePreservesContents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	dst := filepath.Join(dir, "dst.db")
	require.NoError(t, os.WriteFile(src, []byte("contents"), 0644))

	require.NoError(t, copyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(got))
}
