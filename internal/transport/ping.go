package transport

import (
	"context"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"
)

const (
	pingProbes     = 3
	pingWaitSecond = 2
)

// SystemPinger shells out to the system ping binary. Raw-socket ICMP
// needs privileges the manager does not hold.
type SystemPinger struct {
	logger zerolog.Logger
	run    func(ctx context.Context, name string, args ...string) error
}

// NewSystemPinger constructs the default pinger.
func NewSystemPinger(logger zerolog.Logger) *SystemPinger {
	return &SystemPinger{
		logger: logger,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Alive sends three echo requests; any reply counts as alive.
func (p *SystemPinger) Alive(ctx context.Context, host string) bool {
	err := p.run(ctx, "ping",
		"-c", strconv.Itoa(pingProbes),
		"-W", strconv.Itoa(pingWaitSecond),
		host)
	if err != nil {
		p.logger.Warn().Str("host", host).Err(err).Msg("host unreachable")
		return false
	}
	return true
}
