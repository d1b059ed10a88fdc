// Package config loads manager-level settings: defaults, then an
// optional YAML settings file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "BACKUPMGR_"

// Settings is everything that belongs to the manager process rather
// than to any single archive document.
type Settings struct {
	SSH      SSHSettings      `koanf:"ssh"`
	Mail     MailSettings     `koanf:"mail"`
	Slack    SlackSettings    `koanf:"slack"`
	Metrics  MetricsSettings  `koanf:"metrics"`
	Archiver ArchiverSettings `koanf:"archiver"`
	Receiver ReceiverSettings `koanf:"receiver"`
}

// SSHSettings is the identity used to reach client hosts.
type SSHSettings struct {
	User           string        `koanf:"user" validate:"required"`
	KeyFile        string        `koanf:"keyFile" validate:"required"`
	KnownHostsFile string        `koanf:"knownHostsFile"`
	Port           int           `koanf:"port" validate:"gt=0,lte=65535"`
	ConnectTimeout time.Duration `koanf:"connectTimeout" validate:"gt=0"`
}

// MailSettings configures the operator email submission.
type MailSettings struct {
	Relay string `koanf:"relay"`
	From  string `koanf:"from"`
}

// SlackSettings configures the optional outcome mirror.
type SlackSettings struct {
	WebhookURL string `koanf:"webhookUrl"`
}

// MetricsSettings configures the Prometheus listener for serve mode.
type MetricsSettings struct {
	Addr string `koanf:"addr"`
}

// ArchiverSettings names the on-client archiver entry point.
type ArchiverSettings struct {
	Bin string `koanf:"bin" validate:"required"`
}

// ReceiverSettings names the manager-side stream reader.
type ReceiverSettings struct {
	Command string `koanf:"command" validate:"required"`
}

func defaults() Settings {
	return Settings{
		SSH: SSHSettings{
			User:           "backup",
			KeyFile:        "/root/.ssh/id_rsa",
			Port:           22,
			ConnectTimeout: 30 * time.Second,
		},
		Mail:     MailSettings{Relay: "localhost:25", From: "backupmgr@localhost"},
		Archiver: ArchiverSettings{Bin: "archive_push"},
		Receiver: ReceiverSettings{Command: "cat"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load layers defaults, the settings file (when present), and
// BACKUPMGR_* environment variables. A .env in the working directory
// is read first; real environment variables win over it.
func Load(path string) (Settings, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Settings{}, err
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Settings{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Settings{}, fmt.Errorf("load settings file %s: %w", path, err)
			}
		}
	}

	// BACKUPMGR_SSH_USER -> ssh.user
	err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		trimmed := strings.TrimPrefix(key, envPrefix)
		return strings.ReplaceAll(strings.ToLower(trimmed), "_", ".")
	}), nil)
	if err != nil {
		return Settings{}, fmt.Errorf("load environment: %w", err)
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := validate.Struct(&settings); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}
	return err
}
