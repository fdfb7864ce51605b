package executor

import "strings"

// CommandKind says how a command is dispatched to the device.
type CommandKind int

const (
	ReadOnly CommandKind = iota
	Configuration
)

func (k CommandKind) String() string {
	if k == Configuration {
		return "configuration"
	}
	return "read-only"
}

// Classify returns Configuration for commands starting with "configure"
// or "config" after trimming. Matching is case-sensitive.
func Classify(cmd string) CommandKind {
	// "configure" starts with "config", so one prefix covers both
	if strings.HasPrefix(strings.TrimSpace(cmd), "config") {
		return Configuration
	}
	return ReadOnly
}
