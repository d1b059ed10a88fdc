package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if settings.SSH.User != "backup" || settings.SSH.Port != 22 {
		t.Fatalf("ssh defaults wrong: %+v", settings.SSH)
	}
	if settings.SSH.ConnectTimeout != 30*time.Second {
		t.Fatalf("timeout default wrong: %s", settings.SSH.ConnectTimeout)
	}
	if settings.Receiver.Command != "cat" {
		t.Fatalf("receiver default wrong: %q", settings.Receiver.Command)
	}
	if settings.Archiver.Bin != "archive_push" {
		t.Fatalf("archiver default wrong: %q", settings.Archiver.Bin)
	}
	if settings.Mail.Relay != "localhost:25" {
		t.Fatalf("mail default wrong: %q", settings.Mail.Relay)
	}
}

func TestLoad_SettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backupmgr.yml")
	doc := `ssh:
  user: tapeops
  keyFile: /etc/backup/id_ed25519
  port: 2222
  connectTimeout: 45s
slack:
  webhookUrl: https://hooks.slack.com/services/T0/B0/x
metrics:
  addr: :9477
receiver:
  command: dd
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if settings.SSH.User != "tapeops" || settings.SSH.Port != 2222 {
		t.Fatalf("file values not applied: %+v", settings.SSH)
	}
	if settings.SSH.ConnectTimeout != 45*time.Second {
		t.Fatalf("duration not parsed: %s", settings.SSH.ConnectTimeout)
	}
	if settings.Slack.WebhookURL == "" || settings.Metrics.Addr != ":9477" {
		t.Fatalf("optional sections lost: %+v", settings)
	}
	if settings.Receiver.Command != "dd" {
		t.Fatalf("receiver override lost: %q", settings.Receiver.Command)
	}
	// Untouched sections keep defaults.
	if settings.Archiver.Bin != "archive_push" {
		t.Fatalf("archiver default lost: %q", settings.Archiver.Bin)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.SSH.User != "backup" {
		t.Fatalf("defaults lost: %+v", settings.SSH)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKUPMGR_SSH_USER", "envuser")
	t.Setenv("BACKUPMGR_MAIL_RELAY", "relay.example.com:587")

	settings, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.SSH.User != "envuser" {
		t.Fatalf("env override lost: %q", settings.SSH.User)
	}
	if settings.Mail.Relay != "relay.example.com:587" {
		t.Fatalf("env override lost: %q", settings.Mail.Relay)
	}
}

func TestLoad_InvalidSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backupmgr.yml")
	if err := os.WriteFile(path, []byte("ssh:\n  port: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for port 0")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backupmgr.yml")
	if err := os.WriteFile(path, []byte("ssh: [broken\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
