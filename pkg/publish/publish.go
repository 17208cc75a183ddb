// Package publish uploads a verified bundle to an S3-compatible bucket.
package publish

import (
	"context"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/arthur-debert/sfcbuild/pkg/verify"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel uploads
const DefaultConcurrency = 4

// Uploader stores objects in a bucket
type Uploader interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Options controls a publish
type Options struct {
	// Prefix overrides the configured key prefix
	Prefix      string
	Concurrency int
}

// Summary describes an upload
type Summary struct {
	Bucket string
	Keys   []string
	Bytes  int64
}

// extra content types the platform tables often lack
var contentTypes = map[string]string{
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".bcmap": "application/octet-stream",
	".svg":   "image/svg+xml",
	".wasm":  "application/wasm",
}

// ContentType guesses the type of an object from its key
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Key joins a prefix and a bundle path into an object key
func Key(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// Publish verifies the output directory of cfg and uploads every manifest
// file, then the manifest itself, so a reader never sees a manifest that
// lists objects which are not there yet
func Publish(ctx context.Context, fs afero.Fs, cfg *types.Pipeline, up Uploader, opts Options) (*Summary, error) {
	logger := logging.GetLogger("publish")

	report, err := verify.Verify(fs, cfg)
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrOutputIncomplete, "refusing to publish an output that fails verification")
	}

	out := pipeline.OutputDir(cfg)
	manifest, err := pipeline.ReadManifest(fs, out)
	if err != nil {
		return nil, err
	}

	if err := up.EnsureBucket(ctx); err != nil {
		return nil, errors.Wrapf(err, errors.ErrPublish, "bucket %s is not usable", cfg.Publish.Bucket)
	}

	prefix := cfg.Publish.Prefix
	if opts.Prefix != "" {
		prefix = opts.Prefix
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	summary := &Summary{Bucket: cfg.Publish.Bucket}
	var bytes atomic.Int64
	put := func(ctx context.Context, rel string) error {
		abs := filepath.Join(out, filepath.FromSlash(rel))
		f, err := fs.Open(abs)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to open %s", rel).WithPath(abs)
		}
		defer func() {
			_ = f.Close()
		}()
		info, err := f.Stat()
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", rel).WithPath(abs)
		}
		key := Key(prefix, rel)
		if err := up.Put(ctx, key, f, info.Size(), ContentType(rel)); err != nil {
			return errors.Wrapf(err, errors.ErrPublish, "failed to upload %s", key).WithPath(abs)
		}
		bytes.Add(info.Size())
		logger.Debug().Str("key", key).Int64("size", info.Size()).Msg("Uploaded")
		return nil
	}

	paths := manifest.Paths()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, rel := range paths {
		g.Go(func() error { return put(gctx, rel) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := put(ctx, pipeline.ManifestFile); err != nil {
		return nil, err
	}

	for _, rel := range paths {
		summary.Keys = append(summary.Keys, Key(prefix, rel))
	}
	summary.Keys = append(summary.Keys, Key(prefix, pipeline.ManifestFile))
	summary.Bytes = bytes.Load()
	logger.Info().Str("bucket", summary.Bucket).Int("objects", len(summary.Keys)).Msg("Published")
	return summary, nil
}
