package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/andrej220/netexec/pkg/lg"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

const defaultSSHPort = 22

// SSHProviderConfig holds provider-wide defaults. Per-device "timeout",
// "conn_timeout" and "port" extras override them.
type SSHProviderConfig struct {
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	KnownHostsFile     string
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

func DefaultSSHProviderConfig() SSHProviderConfig {
	return SSHProviderConfig{
		ConnectTimeout:     10 * time.Second,
		ReadTimeout:        30 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

type dialFunc func(ctx context.Context, addr string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)

// SSHProvider opens interactive CLI sessions over SSH. Dials go through a
// circuit breaker shared by all Open calls on the same provider. Breaker
// state lives in memory only: it trips for callers that keep one provider
// across many requests, and a one-shot netexec process, which opens a
// single session, never reaches the threshold.
type SSHProvider struct {
	cfg     SSHProviderConfig
	breaker *gobreaker.CircuitBreaker
	logger  lg.Logger
	dial    dialFunc
}

var _ SessionProvider = (*SSHProvider)(nil)

func NewSSHProvider(cfg SSHProviderConfig, logger lg.Logger) *SSHProvider {
	if logger == nil {
		logger = lg.Discard
	}
	defaults := DefaultSSHProviderConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = defaults.BreakerMaxFailures
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = defaults.BreakerOpenTimeout
	}

	maxFailures := cfg.BreakerMaxFailures
	cbs := gobreaker.Settings{
		Name:        "ssh-open",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				lg.String("breaker", name), lg.String("from", from.String()), lg.String("to", to.String()))
		},
	}

	return &SSHProvider{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker(cbs),
		logger:  logger,
		dial:    dialSSH,
	}
}

// sessionParams are the per-device settings resolved from the descriptor.
type sessionParams struct {
	port           int
	secret         string
	connectTimeout time.Duration
	readTimeout    time.Duration
	ignored        []string
}

func (p *SSHProvider) Open(ctx context.Context, dev dm.DeviceDescriptor) (Session, error) {
	dialect, err := DialectFor(dev.DeviceType)
	if err != nil {
		return nil, dm.NewError(dm.KindConnectionError, "", err)
	}
	params, err := resolveParams(dev, p.cfg)
	if err != nil {
		return nil, dm.NewError(dm.KindConnectionError, "invalid device parameters", err)
	}

	addr := net.JoinHostPort(dev.Host, strconv.Itoa(params.port))
	logger := p.logger.With(lg.String("addr", addr), lg.String("device_type", dev.DeviceType))
	if len(params.ignored) > 0 {
		logger.Debug("Ignoring unsupported device parameters", lg.Strings("params", params.ignored))
	}

	clientCfg, err := p.clientConfig(dev, params)
	if err != nil {
		return nil, dm.NewError(dm.KindConnectionError, "", err)
	}

	res, err := p.breaker.Execute(func() (any, error) {
		return p.dial(ctx, addr, clientCfg, params.connectTimeout)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, dm.NewError(dm.KindConnectionError, "too many failed connection attempts to "+addr, err)
		}
		return nil, classifyOpenError(err)
	}
	client := res.(*ssh.Client)
	logger.Debug("SSH connection established")

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, dm.NewError(dm.KindConnectionError, "new session", err)
	}
	closeFn := func() error {
		sessErr := sess.Close()
		clientErr := client.Close()
		if sessErr != nil && !isClosedErr(sessErr) {
			return sessErr
		}
		if clientErr != nil && !isClosedErr(clientErr) {
			return clientErr
		}
		return nil
	}

	sh, err := startShell(ctx, sess, dialect, params, logger, closeFn)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	return sh, nil
}

// startShell releases the connection through closeFn on every failure.
func startShell(ctx context.Context, sess *ssh.Session, d Dialect, params sessionParams, logger lg.Logger, closeFn func() error) (*shell, error) {
	stdin, stdout, err := attachShell(sess)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	sh := newShell(stdin, stdout, d, params.readTimeout, logger, closeFn)
	if err := sh.start(ctx, params.secret); err != nil {
		_ = sh.Close()
		return nil, err
	}
	return sh, nil
}

func attachShell(sess *ssh.Session) (io.Writer, io.Reader, error) {
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("vt100", 24, 511, modes); err != nil {
		return nil, nil, fmt.Errorf("request pty: %w", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := sess.Shell(); err != nil {
		return nil, nil, fmt.Errorf("start shell: %w", err)
	}
	return stdin, stdout, nil
}

func (p *SSHProvider) clientConfig(dev dm.DeviceDescriptor, params sessionParams) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if p.cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(p.cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", p.cfg.KnownHostsFile, err)
		}
		hostKeyCallback = cb
	}

	password := dev.Password
	return &ssh.ClientConfig{
		User: dev.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         params.connectTimeout,
		BannerCallback:  func(message string) error { return nil }, //ignore banner
	}, nil
}

func dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	// bound the handshake as well as the TCP connect
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// classifyOpenError tags err with the kind the orchestrator reports.
// Errors that already carry a tag keep it.
func classifyOpenError(err error) error {
	var tagged *dm.Error
	if errors.As(err, &tagged) && tagged.Kind != dm.KindNone {
		return err
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return dm.NewError(dm.KindConnectionTimeout, "", err)
	case isAuthError(err):
		return dm.NewError(dm.KindAuthenticationFailed, "", err)
	default:
		return dm.NewError(dm.KindConnectionError, "", err)
	}
}

func isAuthError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "EOF")
}

func resolveParams(dev dm.DeviceDescriptor, cfg SSHProviderConfig) (sessionParams, error) {
	params := sessionParams{
		port:           defaultSSHPort,
		connectTimeout: cfg.ConnectTimeout,
		readTimeout:    cfg.ReadTimeout,
	}
	for key, val := range dev.Extra {
		switch key {
		case "port":
			port, err := asInt(val)
			if err != nil || port <= 0 || port > 65535 {
				return params, fmt.Errorf("port: invalid value %v", val)
			}
			params.port = port
		case "secret":
			s, ok := val.(string)
			if !ok {
				return params, fmt.Errorf("secret: expected string, got %T", val)
			}
			params.secret = s
		case "timeout":
			d, err := asSeconds(val)
			if err != nil {
				return params, fmt.Errorf("timeout: %w", err)
			}
			params.readTimeout = d
		case "conn_timeout":
			d, err := asSeconds(val)
			if err != nil {
				return params, fmt.Errorf("conn_timeout: %w", err)
			}
			params.connectTimeout = d
		default:
			params.ignored = append(params.ignored, key)
		}
	}
	sort.Strings(params.ignored)
	return params, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

func asSeconds(v any) (time.Duration, error) {
	var secs float64
	switch n := v.(type) {
	case int:
		secs = float64(n)
	case int64:
		secs = float64(n)
	case float64:
		secs = n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, err
		}
		secs = f
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
