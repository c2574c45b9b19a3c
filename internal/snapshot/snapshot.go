// Package snapshot publishes a seeded database to object storage so other
// machines can start from the same dataset without regenerating it.
//
// A snapshot is two objects under a prefix: <name>.sqlite.sz, the database
// file in snappy's framed format, and <name>.meta.json, a sidecar with the
// seed, row counts and migration checksums the file was built with.
package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/sirupsen/logrus"

	stresserrors "github.com/fluxfeed/stressdb/internal/errors"
	"github.com/fluxfeed/stressdb/internal/logging"
	"github.com/fluxfeed/stressdb/internal/migrate"
	"github.com/fluxfeed/stressdb/internal/stats"
	"github.com/fluxfeed/stressdb/internal/storage"
)

// MigrationInfo identifies one applied migration in the sidecar.
type MigrationInfo struct {
	Version     int64  `json:"version"`
	Description string `json:"description"`
	Checksum    string `json:"checksum"`
}

// Metadata is the JSON sidecar stored next to a snapshot.
type Metadata struct {
	Name       string          `json:"name"`
	Seed       int64           `json:"seed"`
	Counts     *stats.Counts   `json:"counts"`
	Migrations []MigrationInfo `json:"migrations"`
	CreatedAt  time.Time       `json:"created_at"`

	// SourceSHA256 and SourceSize describe the uncompressed database file
	SourceSHA256 string `json:"source_sha256"`
	SourceSize   int64  `json:"source_size"`

	CompressedSize int64  `json:"compressed_size"`
	DataKey        string `json:"data_key"`
}

// Describe collects the counts and migration records of db for a sidecar.
func Describe(ctx context.Context, db *sql.DB, seed int64) (*Metadata, error) {
	counts, err := stats.Collect(ctx, db)
	if err != nil {
		return nil, err
	}
	records, err := migrate.Applied(ctx, db)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{Seed: seed, Counts: counts}
	for _, rec := range records {
		meta.Migrations = append(meta.Migrations, MigrationInfo{
			Version:     rec.Version,
			Description: rec.Description,
			Checksum:    hex.EncodeToString(rec.Checksum),
		})
	}
	return meta, nil
}

// DataKey returns the object key of the compressed database.
func DataKey(prefix, name string) string {
	return path.Join(prefix, name+".sqlite.sz")
}

// MetadataKey returns the object key of the sidecar.
func MetadataKey(prefix, name string) string {
	return path.Join(prefix, name+".meta.json")
}

// Publisher compresses and uploads database files.
type Publisher struct {
	storage storage.ObjectStorage
	prefix  string
	name    string
	log     logrus.FieldLogger
}

// NewPublisher creates a Publisher writing <prefix>/<name>.* objects.
func NewPublisher(store storage.ObjectStorage, prefix, name string, logger logrus.FieldLogger) *Publisher {
	return &Publisher{
		storage: store,
		prefix:  prefix,
		name:    name,
		log:     logging.Component(logger, "snapshot"),
	}
}

// Publish uploads the database at dbPath with meta as its sidecar. The
// database must be closed, or at least checkpointed, so the main file holds
// every committed page. The data object is uploaded before the sidecar; a
// reader that finds the sidecar can rely on the data being there.
func (p *Publisher) Publish(ctx context.Context, dbPath string, meta *Metadata) (*Metadata, error) {
	workDir, err := os.MkdirTemp("", "fluxfeed-snapshot-")
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeUploadFailed, "failed to create work directory", err)
	}
	defer os.RemoveAll(workDir)

	out := *meta
	out.Name = p.name
	out.DataKey = DataKey(p.prefix, p.name)
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	compressedPath := filepath.Join(workDir, p.name+".sqlite.sz")
	sum, size, compressed, err := compressFile(dbPath, compressedPath)
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeUploadFailed,
			fmt.Sprintf("failed to compress %s", dbPath), err)
	}
	out.SourceSHA256 = sum
	out.SourceSize = size
	out.CompressedSize = compressed

	metaPath := filepath.Join(workDir, p.name+".meta.json")
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeUploadFailed, "failed to marshal sidecar", err)
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeUploadFailed, "failed to write sidecar", err)
	}

	if err := p.storage.Upload(ctx, compressedPath, out.DataKey); err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeUploadFailed,
			fmt.Sprintf("failed to upload %s", out.DataKey), err)
	}
	metaKey := MetadataKey(p.prefix, p.name)
	if err := p.storage.Upload(ctx, metaPath, metaKey); err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeUploadFailed,
			fmt.Sprintf("failed to upload %s", metaKey), err)
	}

	p.log.WithFields(logrus.Fields{
		"key":        out.DataKey,
		"size":       size,
		"compressed": compressed,
	}).Info("snapshot published")
	return &out, nil
}

// compressFile writes src to dst in snappy's framed format. It returns the
// SHA-256 and size of src and the size of dst.
func compressFile(src, dst string) (string, int64, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, 0, err
	}
	defer out.Close()

	h := sha256.New()
	w := snappy.NewBufferedWriter(out)
	size, err := io.Copy(w, io.TeeReader(in, h))
	if err != nil {
		return "", 0, 0, err
	}
	if err := w.Close(); err != nil {
		return "", 0, 0, err
	}

	info, err := out.Stat()
	if err != nil {
		return "", 0, 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, info.Size(), nil
}

// ReadMetadata downloads and parses the sidecar of <prefix>/<name>.
func ReadMetadata(ctx context.Context, store storage.ObjectStorage, prefix, name string) (*Metadata, error) {
	workDir, err := os.MkdirTemp("", "fluxfeed-snapshot-")
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeDownloadFailed, "failed to create work directory", err)
	}
	defer os.RemoveAll(workDir)

	key := MetadataKey(prefix, name)
	local := filepath.Join(workDir, "meta.json")
	if err := download(ctx, store, key, local); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeDownloadFailed, "failed to read sidecar", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeDownloadFailed,
			fmt.Sprintf("failed to parse %s", key), err)
	}
	return &meta, nil
}

// Fetch restores snapshot <prefix>/<name> into dest and checks the result
// against the sidecar's SHA-256. dest is replaced.
func Fetch(ctx context.Context, store storage.ObjectStorage, prefix, name, dest string) (*Metadata, error) {
	meta, err := ReadMetadata(ctx, store, prefix, name)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "fluxfeed-snapshot-")
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeDownloadFailed, "failed to create work directory", err)
	}
	defer os.RemoveAll(workDir)

	compressed := filepath.Join(workDir, "data.sqlite.sz")
	if err := download(ctx, store, meta.DataKey, compressed); err != nil {
		return nil, err
	}

	sum, err := decompressFile(compressed, dest)
	if err != nil {
		return nil, stresserrors.NewSnapshotError(stresserrors.CodeDownloadFailed,
			fmt.Sprintf("failed to decompress %s", meta.DataKey), err)
	}
	if sum != meta.SourceSHA256 {
		os.Remove(dest)
		return nil, stresserrors.Newf(stresserrors.ErrCategorySnapshot, stresserrors.CodeDownloadFailed,
			"restored %s has sha256 %s, sidecar says %s", dest, sum, meta.SourceSHA256)
	}
	return meta, nil
}

func download(ctx context.Context, store storage.ObjectStorage, key, local string) error {
	err := store.Download(ctx, key, local)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrObjectNotFound):
		return stresserrors.NewSnapshotError(stresserrors.CodeObjectNotFound,
			fmt.Sprintf("snapshot object %s not found", key), err)
	default:
		return stresserrors.NewSnapshotError(stresserrors.CodeDownloadFailed,
			fmt.Sprintf("failed to download %s", key), err)
	}
}

func decompressFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), snappy.NewReader(in)); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
