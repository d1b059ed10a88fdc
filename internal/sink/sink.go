// Package sink owns the receiving end of an archive stream on the
// manager host: resolving the effective destination and driving the
// tape control verbs around each target.
package sink

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/label"
)

// DefaultReceiver consumes the stream on the manager host.
const DefaultReceiver = "cat"

const devicePrefix = "/dev"

// IsDevice reports whether the destination is a block device rather
// than a directory.
func IsDevice(destination string) bool {
	return strings.HasPrefix(destination, devicePrefix)
}

// Sanitize turns a label base into a filename component: ':' becomes
// '_' first, then '/' becomes '.'.
func Sanitize(base string) string {
	out := strings.ReplaceAll(base, ":", "_")
	return strings.ReplaceAll(out, "/", ".")
}

// Resolve returns the path the receiver writes to. Devices pass
// through; directories get a synthesised per-target filename of the
// form <sanitized base>-<rule>.<weekdayShort>.tgz.
func Resolve(destination, archiveName, host, fsPath string, rule archive.Rule, weekday time.Weekday) string {
	if IsDevice(destination) {
		return destination
	}
	name := Sanitize(label.Base(archiveName, host, fsPath)) +
		"-" + string(rule) + "." + weekday.String()[:3] + ".tgz"
	return filepath.Join(destination, name)
}

// Controller issues the opaque tape verbs. For directory destinations
// the verbs degrade to echo so return-status semantics survive.
type Controller interface {
	Rewind(ctx context.Context) error
	Offline(ctx context.Context) error
}

// TapeController drives mt against a device, or echo for a directory.
type TapeController struct {
	logger      zerolog.Logger
	destination string
	run         func(ctx context.Context, name string, args ...string) error
}

// NewController builds the controller for a destination.
func NewController(logger zerolog.Logger, destination string) *TapeController {
	return &TapeController{
		logger:      logger,
		destination: destination,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Rewind positions the tape before a target stream begins.
func (c *TapeController) Rewind(ctx context.Context) error {
	return c.verb(ctx, "rewind")
}

// Offline ejects the volume after the last target of a successful
// archive.
func (c *TapeController) Offline(ctx context.Context) error {
	return c.verb(ctx, "offline")
}

func (c *TapeController) verb(ctx context.Context, verb string) error {
	if !IsDevice(c.destination) {
		c.logger.Debug().Str("verb", verb).Str("destination", c.destination).Msg("tape verb skipped for directory destination")
		return c.run(ctx, "echo", verb)
	}
	c.logger.Info().Str("verb", verb).Str("device", c.destination).Msg("tape control")
	return c.run(ctx, "mt", "-f", c.destination, verb)
}
