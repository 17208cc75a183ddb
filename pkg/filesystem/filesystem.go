package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// NewOS returns the real filesystem
func NewOS() afero.Fs {
	return afero.NewOsFs()
}

// NewMemory returns an in-memory filesystem, used by tests and dry runs
func NewMemory() afero.Fs {
	return afero.NewMemMapFs()
}

// Stat reports whether path exists and is a directory
func Stat(fsys afero.Fs, path string) (exists bool, isDir bool, err error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// File is a regular file found by WalkFiles
type File struct {
	// Rel is slash-separated and relative to the walked root
	Rel  string
	Path string
	Info fs.FileInfo
}

// WalkFiles lists the regular files under root in lexical order. skipDir is
// consulted for every directory below root with its slash-separated relative
// path; returning true prunes it.
func WalkFiles(fsys afero.Fs, root string, skipDir func(rel string) bool) ([]File, error) {
	var files []File
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && skipDir != nil && skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, File{Rel: rel, Path: path, Info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}
