package pipeline

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/internal/hashutil"
	"github.com/arthur-debert/sfcbuild/pkg/plugins"
	"github.com/spf13/afero"
)

// ManifestFile is written last into every bundle
const ManifestFile = "asset-manifest.json"

// Manifest lists every file of a bundle
type Manifest struct {
	PublicPath string                   `json:"public_path"`
	Files      map[string]ManifestEntry `json:"files"`
}

// ManifestEntry describes one bundle file
type ManifestEntry struct {
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
	Origin string `json:"origin"`
	From   string `json:"from,omitempty"`
}

// Paths returns the manifest file paths in lexical order
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TotalSize sums the size of every listed file
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, entry := range m.Files {
		total += entry.Size
	}
	return total
}

// Marshal renders the manifest as indented JSON
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to encode asset manifest")
	}
	return append(data, '\n'), nil
}

// ReadManifest loads the manifest of an output directory
func ReadManifest(fs afero.Fs, outputDir string) (*Manifest, error) {
	p := filepath.Join(outputDir, ManifestFile)
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrOutputIncomplete, "%s has no readable %s", outputDir, ManifestFile).
			WithPath(p)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrOutputIncomplete, "%s is not a valid manifest", p).WithPath(p)
	}
	if m.Files == nil {
		m.Files = map[string]ManifestEntry{}
	}
	return m, nil
}

func buildManifest(fs afero.Fs, publicPath string, outputs []*plugins.Output) (*Manifest, error) {
	m := &Manifest{PublicPath: publicPath, Files: make(map[string]ManifestEntry, len(outputs))}
	for _, out := range outputs {
		if out.Path == ManifestFile {
			return nil, errors.Newf(errors.ErrConfigInvalid, "%s is reserved for the asset manifest", ManifestFile).
				WithDetail("from", out.From)
		}
		entry := ManifestEntry{Origin: out.Origin, From: out.From}
		if out.Content != nil || out.Source == "" {
			entry.Size = int64(len(out.Content))
			entry.SHA256 = hashutil.Checksum(out.Content)
		} else {
			info, err := fs.Stat(out.Source)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", out.Source).WithPath(out.Source)
			}
			sum, err := hashutil.FileChecksum(fs, out.Source)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to hash %s", out.Source).WithPath(out.Source)
			}
			entry.Size = info.Size()
			entry.SHA256 = sum
		}
		m.Files[out.Path] = entry
	}
	return m, nil
}
