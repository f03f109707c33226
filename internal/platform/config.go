package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk form of the client settings.
//
//	db: notes.db
//	account: "0x..."
//	confirmations: 2
//	poll_interval: 250ms
//	block_time: 1s
type Config struct {
	Database      string        `yaml:"db,omitempty"`
	Account       string        `yaml:"account,omitempty" validate:"omitempty,eth_addr,excluded_with=IdentityFile"`
	IdentityFile  string        `yaml:"identity_file,omitempty"`
	Confirmations uint64        `yaml:"confirmations,omitempty" validate:"lte=64"`
	PollInterval  time.Duration `yaml:"poll_interval,omitempty" validate:"gte=0"`
	BlockTime     time.Duration `yaml:"block_time,omitempty" validate:"gte=0"`
	EventBuffer   int           `yaml:"event_buffer,omitempty" validate:"gte=0"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads and validates a YAML config file. Relative paths in the
// file are resolved against the file's directory.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg.Database = resolveFrom(base, cfg.Database)
	cfg.IdentityFile = resolveFrom(base, cfg.IdentityFile)
	return cfg, nil
}

// ParseConfig decodes and validates YAML config data. Unknown fields are
// rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := configValidator.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Options converts the config into client options. Zero fields keep the
// defaults.
func (c Config) Options() []Option {
	var opts []Option
	if c.Database != "" {
		opts = append(opts, WithDatabase(c.Database))
	}
	if c.Account != "" {
		opts = append(opts, WithAccount(common.HexToAddress(c.Account)))
	}
	if c.IdentityFile != "" {
		opts = append(opts, WithIdentityFile(c.IdentityFile))
	}
	if c.Confirmations > 0 {
		opts = append(opts, WithConfirmations(c.Confirmations))
	}
	if c.PollInterval > 0 {
		opts = append(opts, WithPollInterval(c.PollInterval))
	}
	if c.BlockTime > 0 {
		opts = append(opts, WithBlockTime(c.BlockTime))
	}
	if c.EventBuffer > 0 {
		opts = append(opts, WithEventBuffer(c.EventBuffer))
	}
	return opts
}

func resolveFrom(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
