// Package app wires one request through loading, execution and output.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/andrej220/netexec/internal/executor"
	"github.com/andrej220/netexec/internal/persistence"
	"github.com/andrej220/netexec/internal/request"
	pe "github.com/andrej220/netexec/pkg/executor"
	"github.com/andrej220/netexec/pkg/lg"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

const ScriptErrorPrefix = "Script execution error: "

type Options struct {
	RequestPath string
	OutputPath  string

	Fs       afero.Fs
	Stdout   io.Writer
	Provider pe.SessionProvider
	Logger   lg.Logger
	Now      func() time.Time
}

func (o *Options) setDefaults(ctx context.Context) {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = lg.FromContext(ctx)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Provider == nil {
		o.Provider = pe.NewSSHProvider(pe.DefaultSSHProviderConfig(), o.Logger)
	}
}

// Run processes the request at opts.RequestPath and returns the process
// exit code: 0 when the result is successful, 1 otherwise.
func Run(ctx context.Context, opts Options) (code int) {
	opts.setDefaults(ctx)
	sink := persistence.NewSink(opts.Stdout, opts.Fs, opts.OutputPath)
	logger := opts.Logger.With(lg.String("run_id", uuid.NewString()))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Run aborted", lg.Any("panic", r))
			res := dm.ExecutionResult{
				Success:   false,
				Message:   ScriptErrorPrefix + fmt.Sprint(r),
				Timestamp: opts.Now(),
				Kind:      dm.KindUnexpected,
			}
			if err := sink.Print(res); err != nil {
				logger.Error("Failed to print result", lg.Err(err))
			}
			code = 1
		}
	}()

	req, err := request.Load(opts.Fs, opts.RequestPath)
	if err != nil {
		res := dm.FailureFromError(err, dm.KindUnexpected, "", opts.Now())
		logger.Error(res.Message, lg.String("request", opts.RequestPath))
		if perr := sink.Print(res); perr != nil {
			logger.Error("Failed to print result", lg.Err(perr))
		}
		return 1
	}
	logger.Info("Request loaded",
		lg.String("request", opts.RequestPath),
		lg.String("host", req.Device.Host),
		lg.Int("commands", len(req.Commands)),
		lg.Bool("test_only", req.TestOnly))

	orch := executor.NewOrchestrator(opts.Provider,
		executor.WithLogger(logger),
		executor.WithClock(opts.Now))
	res := orch.Run(lg.Attach(ctx, logger), req)

	if err := sink.Emit(res); err != nil {
		logger.Error("Failed to write result", lg.String("output", opts.OutputPath), lg.Err(err))
		res = dm.NewFailure(dm.KindUnexpected, err.Error(), res.DeviceHost, opts.Now())
		if perr := sink.Print(res); perr != nil {
			logger.Error("Failed to print result", lg.Err(perr))
		}
		return 1
	}

	if !res.Success {
		return 1
	}
	logger.Info("Run completed", lg.String("message", res.Message))
	return 0
}
