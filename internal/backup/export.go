// Package backup implements journal export to S3-compatible object
// storage (Cloudflare R2 or AWS S3): the "export journal" CLI operation
// named in spec.md §6, which bundles the journal file into a checksummed
// gzipped tar and uploads it, mirroring the teacher's own database-backup
// bundling approach generalized from a sqlite database to the append
// journal.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const archivePrefix = "journal-export-"
const archiveTimestampLayout = "2006-01-02-150405"

// Metadata describes one export archive's contents.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Journal   string    `json:"journal"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// Info describes one export object already stored in the bucket.
type Info struct {
	Key       string
	Timestamp time.Time
	SizeBytes int64
}

// objectLister is the narrow slice of *s3.Client this package calls,
// isolated so tests can substitute a fake bucket.
type objectLister interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// uploaderAPI is the narrow slice of *manager.Uploader this package calls.
type uploaderAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Exporter bundles a journal file and uploads it to an S3-compatible
// bucket.
type Exporter struct {
	client   objectLister
	uploader uploaderAPI
	bucket   string
	stageDir string
	log      zerolog.Logger
}

// New builds an Exporter against bucket, using stageDir to assemble
// archives before upload.
func New(client *s3.Client, bucket, stageDir string, log zerolog.Logger) *Exporter {
	return &Exporter{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		stageDir: stageDir,
		log:      log.With().Str("component", "backup").Logger(),
	}
}

// newWithAPI wires an Exporter against narrowed fakes, for tests.
func newWithAPI(client objectLister, uploader uploaderAPI, bucket, stageDir string, log zerolog.Logger) *Exporter {
	return &Exporter{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		stageDir: stageDir,
		log:      log.With().Str("component", "backup").Logger(),
	}
}

// Export bundles journalPath into a gzipped tar with a metadata sidecar
// and uploads it under a timestamped key. Returns the object key.
func (e *Exporter) Export(ctx context.Context, journalPath string) (string, error) {
	start := time.Now()

	if err := os.MkdirAll(e.stageDir, 0o755); err != nil {
		return "", fmt.Errorf("backup: create stage dir: %w", err)
	}

	checksum, err := checksumFile(journalPath)
	if err != nil {
		return "", fmt.Errorf("backup: checksum journal: %w", err)
	}
	info, err := os.Stat(journalPath)
	if err != nil {
		return "", fmt.Errorf("backup: stat journal: %w", err)
	}

	metadata := Metadata{
		Timestamp: time.Now().UTC(),
		Journal:   filepath.Base(journalPath),
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	metadataPath := filepath.Join(e.stageDir, "export-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return "", fmt.Errorf("backup: write metadata: %w", err)
	}
	defer os.Remove(metadataPath)

	timestamp := time.Now().Format(archiveTimestampLayout)
	archiveName := fmt.Sprintf("%s%s.tar.gz", archivePrefix, timestamp)
	archivePath := filepath.Join(e.stageDir, archiveName)
	if err := createArchive(archivePath, journalPath, metadataPath); err != nil {
		return "", fmt.Errorf("backup: create archive: %w", err)
	}
	defer os.Remove(archivePath)

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("backup: open archive: %w", err)
	}
	defer archiveFile.Close()

	if _, err := e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(archiveName),
		Body:   archiveFile,
	}); err != nil {
		return "", fmt.Errorf("backup: upload: %w", err)
	}

	e.log.Info().
		Str("key", archiveName).
		Dur("duration_ms", time.Since(start)).
		Int64("size_bytes", info.Size()).
		Msg("journal export uploaded")

	return archiveName, nil
}

// List returns every export object in the bucket, newest first.
func (e *Exporter) List(ctx context.Context) ([]Info, error) {
	out, err := e.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
		Prefix: aws.String(archivePrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("backup: list objects: %w", err)
	}

	var infos []Info
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		ts, ok := parseArchiveTimestamp(*obj.Key)
		if !ok {
			continue
		}
		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		infos = append(infos, Info{Key: *obj.Key, Timestamp: ts, SizeBytes: size})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Timestamp.After(infos[j].Timestamp) })
	return infos, nil
}

// Rotate deletes export objects older than retentionDays, always keeping
// at least minKeep of the newest regardless of age. retentionDays == 0
// keeps everything.
func (e *Exporter) Rotate(ctx context.Context, retentionDays int, minKeep int) error {
	if retentionDays == 0 {
		return nil
	}
	infos, err := e.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) <= minKeep {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for i, info := range infos {
		if i < minKeep || !info.Timestamp.Before(cutoff) {
			continue
		}
		if _, err := e.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(info.Key),
		}); err != nil {
			e.log.Error().Err(err).Str("key", info.Key).Msg("failed to delete old export")
			continue
		}
		e.log.Info().Str("key", info.Key).Msg("rotated old journal export")
	}
	return nil
}

func parseArchiveTimestamp(key string) (time.Time, bool) {
	if !strings.HasPrefix(key, archivePrefix) || !strings.HasSuffix(key, ".tar.gz") {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(key, archivePrefix), ".tar.gz")
	ts, err := time.Parse(archiveTimestampLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
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
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeMetadata(path string, metadata Metadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func createArchive(archivePath string, files ...string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, path := range files {
		if err := addFileToArchive(tw, path); err != nil {
			return err
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)
	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}
