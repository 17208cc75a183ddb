package hashutil

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// FileChecksum calculates the SHA256 checksum of a file on fs
func FileChecksum(fs afero.Fs, path string) (string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// Checksum calculates the SHA256 checksum of in-memory content
func Checksum(content []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(content))
}

// Key hashes several parts into one cache key. Parts are length-prefixed so
// ("ab","c") and ("a","bc") differ.
func Key(parts ...[]byte) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:", len(part))
		_, _ = hash.Write(part)
	}
	return fmt.Sprintf("%x", hash.Sum(nil))
}
