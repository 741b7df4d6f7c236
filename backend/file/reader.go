package file

import (
	"errors"
	"io/fs"
	"os"

	"github.com/GlintPay/gkps/backend"
)

// Read returns the content of path, mapping a missing file to backend.NotFoundError
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classify(path, err)
	}
	return data, nil
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &backend.NotFoundError{Kind: backend.KindFile, Name: path}
	}
	return &backend.IOError{Path: path, Err: err}
}
