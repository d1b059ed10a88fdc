package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = 22

// SSHConfig carries the manager-side identity used to reach clients.
type SSHConfig struct {
	User           string
	KeyFile        string
	KnownHostsFile string
	Port           int
	ConnectTimeout time.Duration
}

// SSHRunner executes remote commands over SSH sessions, one connection
// per command. Backups are long single streams; connection reuse buys
// nothing and complicates cancellation.
type SSHRunner struct {
	logger zerolog.Logger
	cfg    SSHConfig
	auth   []ssh.AuthMethod
	verify ssh.HostKeyCallback
}

// NewSSHRunner loads the key material once and returns a ready runner.
func NewSSHRunner(logger zerolog.Logger, cfg SSHConfig) (*SSHRunner, error) {
	if cfg.User == "" {
		return nil, errors.New("ssh user is required")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultSSHPort
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	keyData, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	verify := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		verify, err = knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	} else {
		logger.Warn().Msg("no known_hosts configured; host keys are not verified")
	}

	return &SSHRunner{
		logger: logger,
		cfg:    cfg,
		auth:   []ssh.AuthMethod{ssh.PublicKeys(signer)},
		verify: verify,
	}, nil
}

// Run dials the host, executes the rendered command, and returns its
// output and exit code. Context cancellation tears the session down.
func (r *SSHRunner) Run(ctx context.Context, host string, cmd Command) (Result, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(r.cfg.Port))
	clientCfg := &ssh.ClientConfig{
		User:            r.cfg.User,
		Auth:            r.auth,
		HostKeyCallback: r.verify,
		Timeout:         r.cfg.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: r.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		_ = conn.Close()
		return Result{ExitCode: -1}, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("ssh session %s: %w", addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := cmd.Render()
	r.logger.Debug().Str("host", host).Str("command", line).Msg("remote command")

	done := make(chan error, 1)
	go func() {
		done <- session.Run(line)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		<-done
		return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}, ctx.Err()
	case err = <-done:
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("remote command on %s: %w", host, err)
	}
	return result, nil
}
