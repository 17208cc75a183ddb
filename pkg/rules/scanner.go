package rules

import (
	"bufio"
	"bytes"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/codeskyblue/dockerignore"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// IgnoreFile lists paths the scanner skips, relative to the project root
const IgnoreFile = ".sfcbuildignore"

// Origin tells where a scanned file came from
type Origin string

const (
	OriginSource     Origin = "source"
	OriginDependency Origin = "dependency"
)

// File is a scanned input file
type File struct {
	// Rel is slash-separated and relative to the project root
	Rel    string
	Path   string
	Origin Origin
	Size   int64
}

// ScanResult holds every file the pipeline may process
type ScanResult struct {
	Files []File
}

// Rels returns the project-relative paths of every file
func (r *ScanResult) Rels() []string {
	rels := make([]string, len(r.Files))
	for i, f := range r.Files {
		rels[i] = f.Rel
	}
	return rels
}

// Count returns the number of files whose path has the extension
func (r *ScanResult) Count(ext string) int {
	n := 0
	for _, f := range r.Files {
		if strings.EqualFold(path.Ext(f.Rel), ext) {
			n++
		}
	}
	return n
}

// Scanner walks the inputs of a pipeline
type Scanner struct {
	fs      afero.Fs
	cfg     *types.Pipeline
	matcher *Matcher
	ignores []string
	logger  zerolog.Logger
}

// NewScanner creates a scanner over fs for the given pipeline
func NewScanner(fs afero.Fs, cfg *types.Pipeline, matcher *Matcher) (*Scanner, error) {
	s := &Scanner{
		fs:      fs,
		cfg:     cfg,
		matcher: matcher,
		logger:  logging.GetLogger("rules.scanner"),
	}
	patterns, err := readIgnoreFile(fs, filepath.Join(cfg.Root, IgnoreFile))
	if err != nil {
		return nil, err
	}
	s.ignores = patterns
	return s, nil
}

// Scan lists the source directory and every include scope base. A missing
// source directory is a resource error; a missing scope base only means its
// rules match nothing.
func (s *Scanner) Scan() (*ScanResult, error) {
	sourceDir := cleanRel(s.cfg.SourceDir)
	exists, isDir, err := filesystem.Stat(s.fs, s.abs(sourceDir))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat source dir %s", sourceDir)
	}
	if !exists || !isDir {
		return nil, errors.Newf(errors.ErrSourceMissing, "source directory %s does not exist", sourceDir).
			WithPath(s.abs(sourceDir))
	}

	result := &ScanResult{}
	seen := make(map[string]bool)

	walk := func(base string, origin Origin) error {
		files, err := filesystem.WalkFiles(s.fs, s.abs(base), func(rel string) bool {
			return s.skipDir(joinRel(base, rel))
		})
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to scan %s", base).WithPath(s.abs(base))
		}
		for _, f := range files {
			rel := joinRel(base, f.Rel)
			if seen[rel] || s.ignored(rel) {
				continue
			}
			seen[rel] = true
			result.Files = append(result.Files, File{
				Rel:    rel,
				Path:   f.Path,
				Origin: origin,
				Size:   f.Info.Size(),
			})
		}
		return nil
	}

	if err := walk(sourceDir, OriginSource); err != nil {
		return nil, err
	}

	if s.matcher != nil {
		for _, base := range s.matcher.Bases() {
			if base == sourceDir || strings.HasPrefix(base, sourceDir+"/") {
				continue
			}
			exists, isDir, err := filesystem.Stat(s.fs, s.abs(base))
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", base)
			}
			if !exists || !isDir {
				s.logger.Debug().Str("scope", base).Msg("Include scope does not exist")
				continue
			}
			if err := walk(base, OriginDependency); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Debug().Int("files", len(result.Files)).Msg("Scan complete")
	return result, nil
}

func (s *Scanner) abs(rel string) string {
	return filepath.Join(s.cfg.Root, filepath.FromSlash(rel))
}

func (s *Scanner) skipDir(rel string) bool {
	if path.Base(rel) == ".git" {
		return true
	}
	if rel == cleanRel(s.cfg.OutputDir) {
		return true
	}
	return s.ignored(rel)
}

func (s *Scanner) ignored(rel string) bool {
	if len(s.ignores) == 0 {
		return false
	}
	matched, err := ignore.Matches(rel, s.ignores)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", rel).Msg("Invalid ignore pattern")
		return false
	}
	return matched
}

func readIgnoreFile(fs afero.Fs, p string) ([]string, error) {
	content, err := afero.ReadFile(fs, p)
	if err != nil {
		exists, _, statErr := filesystem.Stat(fs, p)
		if statErr == nil && !exists {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", IgnoreFile).WithPath(p)
	}

	var patterns []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, filepath.Clean(line))
	}
	return patterns, nil
}

func cleanRel(p string) string {
	return strings.TrimSuffix(path.Clean(strings.TrimPrefix(toSlash(p), "./")), "/")
}

func joinRel(base, rel string) string {
	if rel == "." || rel == "" {
		return base
	}
	if base == "." || base == "" {
		return rel
	}
	return base + "/" + rel
}
