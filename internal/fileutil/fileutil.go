// Package fileutil writes exported recordings to disk.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteVerified streams r into dst with size and SHA256 verification. The
// data lands in a temporary file beside dst and is renamed into place only
// after the written bytes re-read identically, so dst is never left
// truncated.
func WriteVerified(dst string, r io.Reader, size int64, mode os.FileMode) (err error) {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	srcHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, srcHasher), r)
	if err != nil {
		return err
	}
	if written != size {
		return fmt.Errorf("write size mismatch: expected %d bytes, wrote %d bytes", size, written)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	dstSum, err := sumFile(tmpName)
	if err != nil {
		return err
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstSum) {
		return fmt.Errorf("write hash mismatch: file corrupted during write")
	}

	if err = os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}

func sumFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
