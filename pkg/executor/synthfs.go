package executor

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/synthfs/pkg/synthfs"
	"github.com/arthur-debert/synthfs/pkg/synthfs/core"
	"github.com/arthur-debert/synthfs/pkg/synthfs/filesystem"
	"github.com/arthur-debert/synthfs/pkg/synthfs/operations"
	"github.com/rs/zerolog"
)

// SynthfsExecutor runs all operations as one synthfs pipeline
type SynthfsExecutor struct {
	root       string
	filesystem synthfs.FileSystem
	logger     zerolog.Logger
}

// NewSynthfsExecutor creates an executor confined to root
func NewSynthfsExecutor(root string) *SynthfsExecutor {
	return &SynthfsExecutor{
		root:       root,
		filesystem: filesystem.NewOSFileSystem("/"),
		logger:     logging.GetLogger("executor.synthfs"),
	}
}

func (e *SynthfsExecutor) Name() string { return "synthfs" }

// Execute converts every operation and runs the pipeline
func (e *SynthfsExecutor) Execute(ctx context.Context, ops []Operation) error {
	if len(ops) == 0 {
		e.logger.Debug().Msg("No operations to execute")
		return nil
	}

	pipeline := synthfs.NewMemPipeline()
	for i, op := range ops {
		if err := validate(e.root, op); err != nil {
			return err
		}
		logOperation(e.logger, op)

		synthOp, err := e.convert(i, op)
		if err != nil {
			return err
		}
		if err := pipeline.Add(synthOp); err != nil {
			return errors.Wrapf(err, errors.ErrInternal, "failed to add %s to pipeline", op.Target)
		}
	}

	e.logger.Debug().Int("operationCount", len(ops)).Msg("Executing synthfs pipeline")
	result := synthfs.NewExecutor().Run(ctx, pipeline, e.filesystem)
	if err := result.GetError(); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "failed to write build output")
	}
	return nil
}

// convert maps an operation to synthfs; synthfs paths are relative to "/"
func (e *SynthfsExecutor) convert(i int, op Operation) (synthfs.Operation, error) {
	target, err := filepath.Rel("/", op.Target)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to convert path: %s", op.Target)
	}
	id := core.OperationID(fmt.Sprintf("%s-%d-%s", op.Type, i, target))

	switch op.Type {
	case OperationCreateDir:
		createOp := operations.NewCreateDirectoryOperation(id, target)
		createOp.SetItem(&directoryItem{path: target, mode: modeOr(op.Mode, 0755)})
		return synthfs.NewOperationsPackageAdapter(createOp), nil

	case OperationWriteFile:
		createOp := operations.NewCreateFileOperation(id, target)
		createOp.SetItem(&fileItem{path: target, content: op.Content, mode: modeOr(op.Mode, 0644)})
		return synthfs.NewOperationsPackageAdapter(createOp), nil

	case OperationCopyFile:
		source, err := filepath.Rel("/", op.Source)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to convert source path: %s", op.Source)
		}
		copyOp := operations.NewCopyOperation(id, target)
		copyOp.SetPaths(source, target)
		return synthfs.NewOperationsPackageAdapter(copyOp), nil
	}
	return nil, errors.Newf(errors.ErrInvalidInput, "unsupported operation type: %s", op.Type)
}

type fileItem struct {
	path    string
	content []byte
	mode    fs.FileMode
}

func (f *fileItem) Path() string       { return f.path }
func (f *fileItem) Type() string       { return "file" }
func (f *fileItem) Content() []byte    { return f.content }
func (f *fileItem) Mode() fs.FileMode  { return f.mode }
func (f *fileItem) IsDir() bool        { return false }
func (f *fileItem) ModTime() time.Time { return time.Now() }
func (f *fileItem) Size() int64        { return int64(len(f.content)) }

type directoryItem struct {
	path string
	mode fs.FileMode
}

func (d *directoryItem) Path() string       { return d.path }
func (d *directoryItem) Type() string       { return "directory" }
func (d *directoryItem) Mode() fs.FileMode  { return d.mode }
func (d *directoryItem) IsDir() bool        { return true }
func (d *directoryItem) ModTime() time.Time { return time.Now() }
func (d *directoryItem) Size() int64        { return 0 }
