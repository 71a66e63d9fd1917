package utils

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// FileSHA256 streams a file from disk through SHA-256 and returns the hex digest.
func FileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	return readerSHA256(file)
}

// FileSHA256FS is FileSHA256 over an fs.FS, for callers that walk an
// injected filesystem.
func FileSHA256FS(fsys fs.FS, name string) (string, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	return readerSHA256(file)
}

func readerSHA256(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash contents: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
