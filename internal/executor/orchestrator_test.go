package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrej220/netexec/internal/executor/executortest"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestOrchestrator(p *executortest.Provider) *Orchestrator {
	return NewOrchestrator(p, WithClock(func() time.Time { return fixedNow }))
}

func request(commands ...string) *dm.ExecutionRequest {
	return &dm.ExecutionRequest{
		Device: dm.DeviceDescriptor{
			DeviceType: "cisco_ios",
			Host:       "10.0.0.1",
			Username:   "admin",
			Password:   "secret",
		},
		Commands: commands,
	}
}

func TestRunReadOnlyCommands(t *testing.T) {
	p := &executortest.Provider{Responses: map[string]string{
		"show version": "IOS 15.2",
		"show clock":   "12:00:00",
	}}

	res := newTestOrchestrator(p).Run(context.Background(), request("show version", "show clock"))

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Successfully executed 2 commands", res.Message)
	assert.Equal(t, "10.0.0.1", res.DeviceHost)
	assert.Equal(t, fixedNow, res.Timestamp)

	want := strings.Join([]string{
		"Command: show version", "IOS 15.2", separator,
		"Command: show clock", "12:00:00", separator,
	}, "\n")
	assert.Equal(t, want, res.Output)
	assert.NotContains(t, res.Output, SavedMarker)

	assert.Equal(t, []executortest.Call{
		{Op: "command", Args: []string{"show version"}},
		{Op: "command", Args: []string{"show clock"}},
	}, p.Calls())
	assert.Equal(t, 1, p.Opens())
	assert.Equal(t, 1, p.Closes())
}

func TestRunConfigurationSavesOnce(t *testing.T) {
	p := &executortest.Provider{
		Responses: map[string]string{"configure terminal": "Enter configuration commands"},
		SaveReply: "[OK]",
	}

	res := newTestOrchestrator(p).Run(context.Background(), request("show version", "configure terminal", "config t"))

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Successfully executed 3 commands", res.Message)
	assert.True(t, strings.HasSuffix(res.Output, SavedMarker+"\n[OK]"), res.Output)
	assert.Equal(t, 1, strings.Count(res.Output, SavedMarker))

	calls := p.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "command", calls[0].Op)
	assert.Equal(t, executortest.Call{Op: "config", Args: []string{"configure terminal"}}, calls[1])
	assert.Equal(t, executortest.Call{Op: "config", Args: []string{"config t"}}, calls[2])
	assert.Equal(t, "save", calls[3].Op)
	assert.Equal(t, 1, p.Closes())
}

func TestRunSkipsBlankCommands(t *testing.T) {
	p := &executortest.Provider{}

	res := newTestOrchestrator(p).Run(context.Background(), request("", "show version", "   ", "\t"))

	require.True(t, res.Success)
	// the count is the length of the submitted list
	assert.Equal(t, "Successfully executed 4 commands", res.Message)
	assert.Equal(t, 1, p.Dispatches())
	assert.Equal(t, 1, strings.Count(res.Output, "Command: "))
}

func TestRunEmptyCommandList(t *testing.T) {
	p := &executortest.Provider{}

	res := newTestOrchestrator(p).Run(context.Background(), request())

	require.True(t, res.Success)
	assert.Equal(t, "Successfully executed 0 commands", res.Message)
	assert.Equal(t, "", res.Output)
	assert.Equal(t, 1, p.Opens())
	assert.Equal(t, 1, p.Closes())
}

func TestRunTestOnly(t *testing.T) {
	p := &executortest.Provider{}
	req := request("show version", "configure terminal")
	req.TestOnly = true

	res := newTestOrchestrator(p).Run(context.Background(), req)

	require.True(t, res.Success)
	assert.Equal(t, MsgTestSuccessful, res.Message)
	assert.Equal(t, OutputTestSuccessful, res.Output)
	assert.Equal(t, 0, p.Dispatches())
	assert.Empty(t, p.Calls())
	assert.Equal(t, 1, p.Closes())
}

func TestRunOpenFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		prefix string
	}{
		{"auth", dm.NewError(dm.KindAuthenticationFailed, "", errors.New("unable to authenticate")), "Authentication failed: "},
		{"timeout", dm.NewError(dm.KindConnectionTimeout, "", errors.New("i/o timeout")), "Connection timeout: "},
		{"untagged", errors.New("connection refused"), "Device connection error: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &executortest.Provider{OpenErr: tt.err}

			res := newTestOrchestrator(p).Run(context.Background(), request("show version"))

			assert.False(t, res.Success)
			assert.True(t, strings.HasPrefix(res.Message, tt.prefix), res.Message)
			assert.Equal(t, "", res.Output)
			assert.Equal(t, "10.0.0.1", res.DeviceHost)
			assert.Equal(t, fixedNow, res.Timestamp)
			assert.Equal(t, 0, p.Closes())
			assert.Empty(t, p.Calls())
		})
	}
}

func TestRunCommandFailureStopsAndCloses(t *testing.T) {
	p := &executortest.Provider{FailOn: map[string]error{
		"show clock": dm.NewError(dm.KindConnectionTimeout, "pattern not detected in output after 30s", nil),
	}}

	res := newTestOrchestrator(p).Run(context.Background(), request("show version", "show clock", "show users"))

	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Message, "Connection timeout: "), res.Message)
	assert.Contains(t, res.Message, "show clock")
	assert.Equal(t, "", res.Output)
	assert.Equal(t, 2, p.Dispatches())
	assert.Equal(t, 1, p.Closes())
}

func TestRunUntaggedCommandFailure(t *testing.T) {
	p := &executortest.Provider{FailOn: map[string]error{"show version": errors.New("broken pipe")}}

	res := newTestOrchestrator(p).Run(context.Background(), request("show version"))

	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Message, "Device connection error: "), res.Message)
	assert.Equal(t, 1, p.Closes())
}

func TestRunSaveFailure(t *testing.T) {
	p := &executortest.Provider{SaveErr: errors.New("flash full")}

	res := newTestOrchestrator(p).Run(context.Background(), request("configure terminal"))

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "flash full")
	assert.Equal(t, "", res.Output)
	assert.Equal(t, 1, p.Closes())
}

func TestRunRecoversFromPanic(t *testing.T) {
	p := &executortest.Provider{PanicOn: "show version"}

	res := newTestOrchestrator(p).Run(context.Background(), request("show version"))

	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Message, "Unexpected error: "), res.Message)
	assert.Equal(t, "", res.Output)
	assert.Equal(t, "10.0.0.1", res.DeviceHost)
	assert.Equal(t, 1, p.Closes())
}

func TestRunCloseErrorKeepsResult(t *testing.T) {
	p := &executortest.Provider{CloseErr: errors.New("already closed")}

	res := newTestOrchestrator(p).Run(context.Background(), request("show version"))

	assert.True(t, res.Success)
	assert.Equal(t, 1, p.Closes())
}

func TestRunPassesDeviceToProvider(t *testing.T) {
	p := &executortest.Provider{}
	req := request()
	req.Device.Extra = map[string]any{"port": float64(2222)}

	newTestOrchestrator(p).Run(context.Background(), req)

	assert.Equal(t, req.Device.Host, p.LastOpen().Host)
	assert.Equal(t, float64(2222), p.LastOpen().Extra["port"])
}

func TestRunNilRequest(t *testing.T) {
	res := newTestOrchestrator(&executortest.Provider{}).Run(context.Background(), nil)
	assert.False(t, res.Success)
	assert.Equal(t, dm.KindUnexpected, res.Kind)
}
