package executor

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// OperationType identifies what an operation does
type OperationType string

const (
	OperationCreateDir OperationType = "create_dir"
	OperationWriteFile OperationType = "write_file"
	OperationCopyFile  OperationType = "copy_file"
)

// Operation is one filesystem change. Paths are absolute.
type Operation struct {
	Type    OperationType
	Source  string
	Target  string
	Content []byte
	Mode    os.FileMode

	// Description is shown in logs and plans
	Description string
}

// Executor applies operations in order
type Executor interface {
	Name() string
	Execute(ctx context.Context, ops []Operation) error
}

// New returns the executor of the given kind, confined to root
func New(kind string, fs afero.Fs, root string) (Executor, error) {
	switch kind {
	case types.ExecutorDirect:
		return NewDirectExecutor(fs, root), nil
	case "", types.ExecutorSynthfs:
		if _, ok := fs.(*afero.OsFs); !ok {
			return nil, errors.Newf(errors.ErrConfigInvalid,
				"the %s executor only writes to the real filesystem", types.ExecutorSynthfs)
		}
		return NewSynthfsExecutor(root), nil
	}
	return nil, errors.Newf(errors.ErrConfigInvalid, "unknown executor %q", kind)
}

// WithParents prepends a create_dir operation for every directory below
// root that a file operation needs, shallowest first. Existing create_dir
// operations are kept and not duplicated.
func WithParents(root string, ops []Operation) []Operation {
	root = filepath.Clean(root)
	dirs := make(map[string]bool)
	for _, op := range ops {
		if op.Type == OperationCreateDir {
			dirs[filepath.Clean(op.Target)] = true
		}
	}
	var missing []string
	add := func(dir string) {
		for dir != root && isPathWithin(dir, root) && !dirs[dir] {
			dirs[dir] = true
			missing = append(missing, dir)
			dir = filepath.Dir(dir)
		}
	}
	for _, op := range ops {
		if op.Type != OperationCreateDir {
			add(filepath.Dir(filepath.Clean(op.Target)))
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		di, dj := strings.Count(missing[i], string(filepath.Separator)), strings.Count(missing[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return missing[i] < missing[j]
	})

	out := make([]Operation, 0, len(missing)+len(ops))
	for _, dir := range missing {
		out = append(out, Operation{Type: OperationCreateDir, Target: dir, Mode: 0755})
	}
	return append(out, ops...)
}

func validate(root string, op Operation) error {
	if op.Target == "" {
		return errors.Newf(errors.ErrInvalidInput, "%s operation requires a target", op.Type)
	}
	if op.Type == OperationCopyFile && op.Source == "" {
		return errors.New(errors.ErrInvalidInput, "copy operation requires a source")
	}
	if !isPathWithin(filepath.Clean(op.Target), filepath.Clean(root)) {
		return errors.Newf(errors.ErrInternal, "refusing to write %s outside of %s", op.Target, root).
			WithPath(op.Target)
	}
	return nil
}

func isPathWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func logOperation(logger zerolog.Logger, op Operation) {
	event := logger.Trace().Str("type", string(op.Type)).Str("target", op.Target)
	switch op.Type {
	case OperationCopyFile:
		event = event.Str("source", op.Source)
	case OperationWriteFile:
		event = event.Int("contentLen", len(op.Content))
	}
	if op.Description != "" {
		event = event.Str("description", op.Description)
	}
	event.Msg("Executing operation")
}
