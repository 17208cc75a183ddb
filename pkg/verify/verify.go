// Package verify checks an emitted bundle: the manifest matches the files on
// disk, every declared asset directory is mirrored byte for byte, internal
// references are relative and no incomplete marker is present.
package verify

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arthur-debert/sfcbuild/pkg/config"
	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/internal/hashutil"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/spf13/afero"
	"golang.org/x/net/html"
)

// Problem is one failed check
type Problem struct {
	// Path is relative to the output directory when the problem is about a file
	Path    string
	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// Report is the outcome of a verification
type Report struct {
	OutputDir string
	Files     int
	Mirrored  int
	Problems  []Problem
}

// OK reports whether every check passed
func (r *Report) OK() bool {
	return len(r.Problems) == 0
}

// Err returns nil for a clean report and a resource error otherwise
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		lines[i] = p.String()
	}
	return errors.Newf(errors.ErrVerify, "%s failed %d checks", r.OutputDir, len(r.Problems)).
		WithPath(r.OutputDir).
		WithDetail("problems", lines)
}

func (r *Report) add(p, format string, args ...interface{}) {
	r.Problems = append(r.Problems, Problem{Path: p, Message: fmt.Sprintf(format, args...)})
}

// Verify checks the output directory of cfg. It returns an error only when
// the checks cannot run at all; failed checks are listed in the report.
func Verify(fs afero.Fs, cfg *types.Pipeline) (*Report, error) {
	logger := logging.GetLogger("verify")
	out := pipeline.OutputDir(cfg)
	report := &Report{OutputDir: out}

	exists, isDir, err := filesystem.Stat(fs, out)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", out).WithPath(out)
	}
	if !exists || !isDir {
		report.add("", "output directory does not exist")
		return report, nil
	}
	if marked, _, _ := filesystem.Stat(fs, filepath.Join(out, pipeline.IncompleteMarker)); marked {
		report.add(pipeline.IncompleteMarker, "output is marked incomplete")
	}

	manifest, err := pipeline.ReadManifest(fs, out)
	if err != nil {
		report.add(pipeline.ManifestFile, "%v", err)
		return report, nil
	}
	if !config.IsRelativeReference(manifest.PublicPath) {
		report.add(pipeline.ManifestFile, "public path %q is not relative", manifest.PublicPath)
	}

	checkManifest(fs, out, manifest, report)
	checkUnlisted(fs, out, manifest, report)
	if err := checkMirrors(fs, cfg, out, report); err != nil {
		return nil, err
	}
	for _, p := range manifest.Paths() {
		if ext := path.Ext(p); ext == ".html" || ext == ".css" {
			checkReferences(fs, out, p, manifest, report)
		}
	}

	logger.Debug().Int("files", report.Files).Int("problems", len(report.Problems)).Msg("Verification finished")
	return report, nil
}

func checkManifest(fs afero.Fs, out string, manifest *pipeline.Manifest, report *Report) {
	for _, p := range manifest.Paths() {
		entry := manifest.Files[p]
		abs := filepath.Join(out, filepath.FromSlash(p))
		info, err := fs.Stat(abs)
		if err != nil {
			report.add(p, "listed in the manifest but missing")
			continue
		}
		report.Files++
		if info.Size() != entry.Size {
			report.add(p, "size %d does not match the manifest (%d)", info.Size(), entry.Size)
			continue
		}
		sum, err := hashutil.FileChecksum(fs, abs)
		if err != nil {
			report.add(p, "cannot be read: %v", err)
			continue
		}
		if sum != entry.SHA256 {
			report.add(p, "checksum does not match the manifest")
		}
	}
}

func checkUnlisted(fs afero.Fs, out string, manifest *pipeline.Manifest, report *Report) {
	files, err := filesystem.WalkFiles(fs, out, nil)
	if err != nil {
		report.add("", "cannot list output: %v", err)
		return
	}
	for _, f := range files {
		if f.Rel == pipeline.ManifestFile || f.Rel == pipeline.IncompleteMarker {
			continue
		}
		if _, ok := manifest.Files[f.Rel]; !ok {
			report.add(f.Rel, "not listed in the manifest")
		}
	}
}

// checkMirrors compares every file of every copy source with its mirror
func checkMirrors(fs afero.Fs, cfg *types.Pipeline, out string, report *Report) error {
	patterns, err := plugins.CopyPatterns(cfg)
	if err != nil {
		return err
	}
	for _, rule := range patterns {
		mirrors, err := plugins.Plan(fs, cfg.Root, rule)
		if err != nil {
			if errors.IsErrorCode(err, errors.ErrAssetSourceMissing) {
				report.add("", "copy source %s does not exist", rule.From)
				continue
			}
			return err
		}
		for _, m := range mirrors {
			want, err := afero.ReadFile(fs, m.Source)
			if err != nil {
				return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", m.From).WithPath(m.Source)
			}
			got, err := afero.ReadFile(fs, filepath.Join(out, filepath.FromSlash(m.Target)))
			if err != nil {
				report.add(m.Target, "mirror of %s is missing", m.From)
				continue
			}
			if !bytes.Equal(want, got) {
				report.add(m.Target, "differs from %s", m.From)
				continue
			}
			report.Mirrored++
		}
	}
	return nil
}

// checkReferences flags rooted references in a document or stylesheet and
// relative ones that point at files the bundle does not contain: either the
// manifest does not list the target or it is gone from the output tree
func checkReferences(fs afero.Fs, out, p string, manifest *pipeline.Manifest, report *Report) {
	content, err := afero.ReadFile(fs, filepath.Join(out, filepath.FromSlash(p)))
	if err != nil {
		return
	}
	var refs []string
	if path.Ext(p) == ".html" {
		refs = htmlReferences(content)
	} else {
		refs = cssReferences(content)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "data:") {
			continue
		}
		if strings.HasPrefix(ref, "/") {
			report.add(p, "reference %q is rooted; the bundle would only work at the server root", ref)
			continue
		}
		if !config.IsRelativeReference(ref) {
			continue
		}
		local := ref
		if i := strings.IndexAny(local, "?#"); i >= 0 {
			local = local[:i]
		}
		// documents reference through the public path, stylesheets relative to themselves
		target := path.Clean(path.Join(path.Dir(p), local))
		if path.Ext(p) == ".html" {
			target = path.Clean(strings.TrimPrefix(local, manifest.PublicPath))
		}
		_, listed := manifest.Files[target]
		onDisk, _ := afero.Exists(fs, filepath.Join(out, filepath.FromSlash(target)))
		if !listed || !onDisk {
			report.add(p, "reference %q points at a file the bundle does not contain", ref)
		}
	}
}

func htmlReferences(content []byte) []string {
	var refs []string
	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return refs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		if _, hasAttr := z.TagName(); !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if k := string(key); k == "src" || k == "href" {
				refs = append(refs, strings.TrimSpace(string(val)))
			}
			if !more {
				break
			}
		}
	}
}

func cssReferences(content []byte) []string {
	var refs []string
	s := string(content)
	for {
		i := strings.Index(s, "url(")
		if i < 0 {
			return refs
		}
		s = s[i+len("url("):]
		j := strings.IndexByte(s, ')')
		if j < 0 {
			return refs
		}
		refs = append(refs, strings.Trim(strings.TrimSpace(s[:j]), `"'`))
		s = s[j+1:]
	}
}
