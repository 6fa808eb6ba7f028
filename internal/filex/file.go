// Package filex reads local files for upload.
package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// EachPart reads the file at path in consecutive parts of partSize bytes
// and calls fn with each one; only the last part may be shorter. An empty
// file yields no parts. The buffer passed to fn is reused between calls.
func EachPart(path string, partSize int64, fn func(part []byte) error) error {
	if partSize <= 0 {
		return fmt.Errorf("invalid part size %d", partSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, partSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
}
