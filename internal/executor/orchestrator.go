package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	pe "github.com/andrej220/netexec/pkg/executor"
	"github.com/andrej220/netexec/pkg/lg"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

const (
	MsgTestSuccessful    = "Connection test successful"
	OutputTestSuccessful = "Connection established successfully"
	SavedMarker          = "Configuration saved:"
)

var separator = strings.Repeat("-", 50)

// Orchestrator runs one request against one device: open, dispatch each
// command in order, save if anything was configured, close.
type Orchestrator struct {
	provider pe.SessionProvider
	logger   lg.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger lg.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(provider pe.SessionProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		logger:   lg.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run never returns an error and never panics: every failure is reported
// in the result. A session that was opened is closed exactly once.
func (o *Orchestrator) Run(ctx context.Context, req *dm.ExecutionRequest) (res dm.ExecutionResult) {
	if req == nil {
		return dm.NewFailure(dm.KindUnexpected, "nil request", "", o.now())
	}
	host := req.Device.Host
	logger := o.logger.With(lg.String("host", host))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Unexpected failure", lg.Any("panic", r))
			res = dm.NewFailure(dm.KindUnexpected, fmt.Sprint(r), host, o.now())
		}
	}()

	logger.Info("Connecting to device", lg.String("device_type", req.Device.DeviceType))
	sess, err := o.provider.Open(ctx, req.Device)
	if err != nil {
		res = dm.FailureFromError(err, dm.KindConnectionError, host, o.now())
		logger.Error(res.Message)
		return res
	}
	logger.Info("Successfully connected to device")
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("Failed to close session", lg.Err(cerr))
			return
		}
		logger.Info("Disconnected from device")
	}()

	if req.TestOnly {
		return dm.NewSuccess(MsgTestSuccessful, OutputTestSuccessful, host, o.now())
	}

	output, err := o.dispatch(ctx, sess, req.Commands, logger)
	if err != nil {
		res = dm.FailureFromError(err, dm.KindConnectionError, host, o.now())
		logger.Error(res.Message)
		return res
	}

	return dm.NewSuccess(fmt.Sprintf("Successfully executed %d commands", len(req.Commands)), output, host, o.now())
}

// dispatch sends the non-blank commands in order and returns the joined
// output log.
func (o *Orchestrator) dispatch(ctx context.Context, sess pe.Session, commands []string, logger lg.Logger) (string, error) {
	var lines []string
	configured := false

	for _, cmd := range commands {
		if strings.TrimSpace(cmd) == "" {
			continue
		}
		kind := Classify(cmd)
		logger.Info("Executing command", lg.String("command", cmd), lg.String("kind", kind.String()))

		var (
			out string
			err error
		)
		if kind == Configuration {
			configured = true
			out, err = sess.SendConfigSet(ctx, []string{cmd})
		} else {
			out, err = sess.SendCommand(ctx, cmd)
		}
		if err != nil {
			return "", fmt.Errorf("command %q: %w", cmd, err)
		}
		lines = append(lines, "Command: "+cmd, out, separator)
	}

	if configured {
		out, err := sess.SaveConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("save configuration: %w", err)
		}
		lines = append(lines, SavedMarker, out)
	}

	return strings.Join(lines, "\n"), nil
}
