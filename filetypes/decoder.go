package filetypes

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidUTF8       = errors.New("content is not valid UTF-8")
)

// Decoder parses raw bytes into flat key/value entries
type Decoder interface {
	Decode(name string, data []byte) (map[string]string, error)
}

type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type Options struct {
	Profiles  []string
	Decrypter Decrypter
}

// ForName picks a decoder for a file or ConfigMap key name by its extension
func ForName(name string, opts Options) (Decoder, error) {
	readable, suffix := IsReadable(name)
	if !readable {
		return nil, &DecodeError{Name: name, Err: ErrUnsupportedFormat}
	}

	switch suffix {
	case ".properties":
		return PropertiesDecoder{}, nil
	default:
		decrypter := opts.Decrypter
		if decrypter == nil {
			decrypter = noopDecrypter{}
		}
		return YamlDecoder{Profiles: opts.Profiles, Decrypter: decrypter}, nil
	}
}

// IsReadable reports whether name has a supported extension, and which
func IsReadable(name string) (bool, string) {
	suffix := strings.ToLower(filepath.Ext(name))
	switch suffix {
	case ".properties", ".yml", ".yaml":
		return true, suffix
	}
	return false, ""
}

// Decode picks the decoder for name and runs it
func Decode(name string, data []byte, opts Options) (map[string]string, error) {
	decoder, err := ForName(name, opts)
	if err != nil {
		return nil, err
	}
	return decoder.Decode(name, data)
}
