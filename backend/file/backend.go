package file

import (
	"context"
	"os"

	"github.com/GlintPay/gkps/filetypes"
	"github.com/GlintPay/gkps/utils"
	"github.com/rs/zerolog/log"
)

const namePrefix = "file:"

// SourceName is the property source name for a path
func SourceName(path string) string {
	return namePrefix + path
}

// Backend is a single mounted `.properties`/`.yml`/`.yaml` file, or a Secret directory
type Backend struct {
	Path    string
	Ordinal int
	Options filetypes.Options
}

func (s *Backend) Order() int {
	return s.Ordinal
}

func (s *Backend) Name() string {
	return SourceName(s.Path)
}

func (s *Backend) Load(_ context.Context) (map[string]string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, classify(s.Path, err)
	}

	if info.IsDir() {
		log.Debug().Msgf("Reading secrets from directory %s", utils.FriendlyFileName(s.Path))
		return ReadSecretDir(s.Path)
	}

	data, err := Read(s.Path)
	if err != nil {
		return nil, err
	}

	log.Debug().Msgf("Reading from %s", utils.FriendlyFileName(s.Path))
	return filetypes.Decode(s.Path, data, s.Options)
}
