package filetypes

import (
	"unicode/utf8"

	"github.com/magiconair/properties"
)

// PropertiesDecoder reads `.properties` content. ${...} references are left for the aggregator,
// which can see every source.
type PropertiesDecoder struct{}

func (PropertiesDecoder) Decode(name string, data []byte) (map[string]string, error) {
	if !utf8.Valid(data) {
		return nil, &DecodeError{Name: name, Err: ErrInvalidUTF8}
	}

	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	return p.Map(), nil
}
