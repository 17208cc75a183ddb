package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/executor"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// IncompleteMarker flags a directory left behind by a failed build
const IncompleteMarker = ".incomplete"

// StagingInfix separates the output directory name from the staging suffix
const StagingInfix = ".staging-"

// writeBundle stages every output next to outputDir and swaps the staged
// tree into place. The manifest is the last file written.
func writeBundle(ctx context.Context, fs afero.Fs, kind, outputDir string, outputs []*plugins.Output, manifest *Manifest, logger zerolog.Logger) error {
	parent := filepath.Dir(outputDir)
	if err := fs.MkdirAll(parent, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", parent).WithPath(parent)
	}
	staging, err := afero.TempDir(fs, parent, filepath.Base(outputDir)+StagingInfix)
	if err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create staging directory in %s", parent).WithPath(parent)
	}
	logger.Debug().Str("staging", staging).Msg("Staging bundle")

	exec, err := executor.New(kind, fs, staging)
	if err != nil {
		return abandon(fs, staging, err, logger)
	}

	data, err := manifest.Marshal()
	if err != nil {
		return abandon(fs, staging, err, logger)
	}

	ops := make([]executor.Operation, 0, len(outputs)+1)
	for _, out := range outputs {
		target := filepath.Join(staging, filepath.FromSlash(out.Path))
		if out.Content == nil && out.Source != "" {
			ops = append(ops, executor.Operation{
				Type:        executor.OperationCopyFile,
				Source:      out.Source,
				Target:      target,
				Description: "copy " + out.Path,
			})
			continue
		}
		ops = append(ops, executor.Operation{
			Type:        executor.OperationWriteFile,
			Target:      target,
			Content:     out.Content,
			Mode:        0644,
			Description: "write " + out.Path,
		})
	}
	ops = append(ops, executor.Operation{
		Type:        executor.OperationWriteFile,
		Target:      filepath.Join(staging, ManifestFile),
		Content:     data,
		Mode:        0644,
		Description: "write " + ManifestFile,
	})

	if err := exec.Execute(ctx, executor.WithParents(staging, ops)); err != nil {
		return abandon(fs, staging, err, logger)
	}
	if err := swap(fs, staging, outputDir, logger); err != nil {
		return abandon(fs, staging, err, logger)
	}
	return nil
}

// swap replaces outputDir with staging. The previous bundle is restored if
// the final rename fails.
func swap(fs afero.Fs, staging, outputDir string, logger zerolog.Logger) error {
	exists, _, err := filesystem.Stat(fs, outputDir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", outputDir).WithPath(outputDir)
	}
	previous := ""
	if exists {
		previous = outputDir + ".previous-" + strings.TrimPrefix(filepath.Base(staging), filepath.Base(outputDir)+StagingInfix)
		if err := fs.Rename(outputDir, previous); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to move the previous bundle out of %s", outputDir).
				WithPath(outputDir)
		}
	}
	if err := fs.Rename(staging, outputDir); err != nil {
		if previous != "" {
			if rerr := fs.Rename(previous, outputDir); rerr != nil {
				logger.Error().Err(rerr).Str("previous", previous).Msg("Failed to restore the previous bundle")
			}
		}
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to move the bundle into %s", outputDir).WithPath(outputDir)
	}
	if previous != "" {
		if err := fs.RemoveAll(previous); err != nil {
			logger.Warn().Err(err).Str("path", previous).Msg("Failed to remove the previous bundle")
		}
	}
	return nil
}

// abandon removes a staging directory after a failure. A directory that
// cannot be removed is marked incomplete so nothing mistakes it for a bundle.
func abandon(fs afero.Fs, staging string, cause error, logger zerolog.Logger) error {
	err := fs.RemoveAll(staging)
	if err == nil {
		return cause
	}
	logger.Error().Err(err).Str("staging", staging).Msg("Failed to remove staging directory")
	marker := filepath.Join(staging, IncompleteMarker)
	if err := afero.WriteFile(fs, marker, []byte(cause.Error()+"\n"), 0644); err != nil {
		logger.Error().Err(err).Str("path", marker).Msg("Failed to mark staging directory incomplete")
	}
	return cause
}
