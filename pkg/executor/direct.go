package executor

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DirectExecutor performs operations one by one on an afero.Fs
type DirectExecutor struct {
	fs     afero.Fs
	root   string
	logger zerolog.Logger
}

// NewDirectExecutor creates an executor confined to root
func NewDirectExecutor(fs afero.Fs, root string) *DirectExecutor {
	return &DirectExecutor{
		fs:     fs,
		root:   root,
		logger: logging.GetLogger("executor.direct"),
	}
}

func (e *DirectExecutor) Name() string { return "direct" }

// Execute stops at the first failing operation
func (e *DirectExecutor) Execute(ctx context.Context, ops []Operation) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCanceled, "execution canceled")
		}
		if err := validate(e.root, op); err != nil {
			return err
		}
		logOperation(e.logger, op)

		var err error
		switch op.Type {
		case OperationCreateDir:
			err = e.createDir(op)
		case OperationWriteFile:
			err = e.writeFile(op)
		case OperationCopyFile:
			err = e.copyFile(op)
		default:
			err = errors.Newf(errors.ErrInvalidInput, "unsupported operation type: %s", op.Type)
		}
		if err != nil {
			return err
		}
	}
	e.logger.Debug().Int("operations", len(ops)).Msg("Operations executed")
	return nil
}

func (e *DirectExecutor) createDir(op Operation) error {
	if err := e.fs.MkdirAll(op.Target, modeOr(op.Mode, 0755)); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory %s", op.Target).WithPath(op.Target)
	}
	return nil
}

func (e *DirectExecutor) writeFile(op Operation) error {
	if err := e.fs.MkdirAll(filepath.Dir(op.Target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create parent of %s", op.Target).WithPath(op.Target)
	}
	if err := afero.WriteFile(e.fs, op.Target, op.Content, modeOr(op.Mode, 0644)); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write %s", op.Target).WithPath(op.Target)
	}
	return nil
}

func (e *DirectExecutor) copyFile(op Operation) error {
	src, err := e.fs.Open(op.Source)
	if err != nil {
		code := errors.ErrFileAccess
		if os.IsNotExist(err) {
			code = errors.ErrNotFound
		}
		return errors.Wrapf(err, code, "failed to open %s", op.Source).WithPath(op.Source)
	}
	defer func() {
		_ = src.Close()
	}()

	mode := op.Mode
	if mode == 0 {
		if info, err := src.Stat(); err == nil {
			mode = info.Mode().Perm()
		}
	}

	if err := e.fs.MkdirAll(filepath.Dir(op.Target), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create parent of %s", op.Target).WithPath(op.Target)
	}
	dst, err := e.fs.OpenFile(op.Target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, modeOr(mode, 0644))
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to create %s", op.Target).WithPath(op.Target)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to copy %s to %s", op.Source, op.Target).WithPath(op.Target)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to close %s", op.Target).WithPath(op.Target)
	}
	return nil
}

func modeOr(mode, def os.FileMode) os.FileMode {
	if mode == 0 {
		return def
	}
	return mode
}
