package executor

import (
	"context"

	dm "github.com/andrej220/netexec/pkg/shared-models"
)

// Session is a live, stateful connection to one device. It is not safe
// for concurrent use.
type Session interface {
	// SendCommand runs a read-only command and returns its response.
	SendCommand(ctx context.Context, cmd string) (string, error)
	// SendConfigSet enters configuration mode, sends cmds in order and
	// leaves configuration mode, returning the transcript.
	SendConfigSet(ctx context.Context, cmds []string) (string, error)
	// SaveConfig persists the running configuration.
	SaveConfig(ctx context.Context) (string, error)
	Close() error
}

// SessionProvider opens sessions. Open errors should carry a
// datamodels.ErrorKind tag (authentication, timeout or connection).
type SessionProvider interface {
	Open(ctx context.Context, dev dm.DeviceDescriptor) (Session, error)
}
