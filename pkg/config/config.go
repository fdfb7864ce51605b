// Package config holds the tool-wide settings read from an optional YAML
// file. Flags given on the command line take precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/andrej220/netexec/pkg/config/configstore"
	"github.com/andrej220/netexec/pkg/config/filestore"
)

type Settings struct {
	Log LogSettings `yaml:"log"`
	SSH SSHSettings `yaml:"ssh"`
}

type LogSettings struct {
	Debug  bool   `yaml:"debug"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type SSHSettings struct {
	ConnectTimeout time.Duration   `yaml:"connect_timeout" validate:"gte=0"`
	ReadTimeout    time.Duration   `yaml:"read_timeout" validate:"gte=0"`
	KnownHostsFile string          `yaml:"known_hosts_file"`
	Breaker        BreakerSettings `yaml:"breaker"`
}

type BreakerSettings struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout" validate:"gte=0"`
}

func Default() Settings {
	return Settings{
		Log: LogSettings{Format: "console"},
		SSH: SSHSettings{
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    30 * time.Second,
			Breaker: BreakerSettings{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
	}
}

var validate = validator.New()

func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q check", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}

// NewStore returns the store backing settings at path.
func NewStore(fs afero.Fs, path string) configstore.ConfigStore {
	return filestore.New(fs, path)
}

// Load returns Default overlaid with the document at path. An empty path
// yields the defaults.
func Load(fs afero.Fs, path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	if err := NewStore(fs, path).Load(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
