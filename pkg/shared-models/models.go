package datamodels

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeviceDescriptor identifies one target device. Keys of the "device"
// object other than the four known ones are kept in Extra and forwarded
// to the session provider verbatim.
type DeviceDescriptor struct {
	DeviceType string         `json:"device_type" validate:"required,devicetype"`
	Host       string         `json:"host" validate:"required"`
	Username   string         `json:"username" validate:"required"`
	Password   string         `json:"password" validate:"required"`
	Extra      map[string]any `json:"-"`
}

var knownDeviceKeys = []string{"device_type", "host", "username", "password"}

func (d *DeviceDescriptor) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := map[string]*string{
		"device_type": &d.DeviceType,
		"host":        &d.Host,
		"username":    &d.Username,
		"password":    &d.Password,
	}
	for _, key := range knownDeviceKeys {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		if string(msg) == "null" {
			continue
		}
		if err := json.Unmarshal(msg, fields[key]); err != nil {
			return fmt.Errorf("device.%s: %w", key, err)
		}
	}
	if len(raw) == 0 {
		return nil
	}
	d.Extra = make(map[string]any, len(raw))
	for key, msg := range raw {
		var v any
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("device.%s: %w", key, err)
		}
		d.Extra[key] = v
	}
	return nil
}

func (d DeviceDescriptor) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+len(knownDeviceKeys))
	for k, v := range d.Extra {
		out[k] = v
	}
	out["device_type"] = d.DeviceType
	out["host"] = d.Host
	out["username"] = d.Username
	out["password"] = d.Password
	return json.Marshal(out)
}

// ExecutionRequest is one batch of commands for one device.
type ExecutionRequest struct {
	Device   DeviceDescriptor `json:"device"`
	Commands []string         `json:"commands"`
	TestOnly bool             `json:"test_only"`
}

// ExecutionResult is the outcome record returned for every request.
type ExecutionResult struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Output     string    `json:"output"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceHost string    `json:"device_host,omitempty"`
	Kind       ErrorKind `json:"-"`
}

func NewSuccess(message, output, host string, ts time.Time) ExecutionResult {
	return ExecutionResult{
		Success:    true,
		Message:    message,
		Output:     output,
		Timestamp:  ts,
		DeviceHost: host,
		Kind:       KindNone,
	}
}

// NewFailure builds a failed result whose message is the kind's prefix
// followed by detail. Output is always empty.
func NewFailure(kind ErrorKind, detail, host string, ts time.Time) ExecutionResult {
	if kind == KindNone {
		kind = KindUnexpected
	}
	return ExecutionResult{
		Success:    false,
		Message:    kind.Prefix() + detail,
		Timestamp:  ts,
		DeviceHost: host,
		Kind:       kind,
	}
}

// FailureFromError maps err to a failed result, using fallback when err
// carries no kind tag.
func FailureFromError(err error, fallback ErrorKind, host string, ts time.Time) ExecutionResult {
	return NewFailure(KindOf(err, fallback), err.Error(), host, ts)
}
