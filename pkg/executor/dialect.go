package executor

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect describes how to drive one vendor CLI over an interactive shell.
type Dialect struct {
	Name string
	// Terminators are the characters a prompt may end with.
	Terminators   string
	DisablePaging []string
	ConfigEnter   string
	ConfigExit    string
	SaveCommand   string
	// SaveConfirm matches a confirmation question printed by SaveCommand;
	// SaveAnswer is sent in reply.
	SaveConfirm *regexp.Regexp
	SaveAnswer  string
	// CommitInConfig marks dialects whose SaveCommand is a commit that is
	// only valid inside configuration mode.
	CommitInConfig bool
	// ExitConfirm matches a question printed by ConfigExit while changes
	// are uncommitted; ExitAnswer is sent in reply.
	ExitConfirm *regexp.Regexp
	ExitAnswer  string
	// Enable marks dialects with a privileged mode entered with "enable"
	// and the descriptor's secret.
	Enable bool
}

var junosExitConfirm = regexp.MustCompile(`(?i)exit with uncommitted changes\?\s*\[yes,no\].*$`)

var yesNo = regexp.MustCompile(`(?i)\[(y/n|yes/no)\]\s*:?\s*$|\[confirm\]\s*$`)

var dialects = map[string]Dialect{
	"cisco_ios": {
		Terminators:   ">#",
		DisablePaging: []string{"terminal length 0", "terminal width 511"},
		ConfigEnter:   "configure terminal",
		ConfigExit:    "end",
		SaveCommand:   "write memory",
		Enable:        true,
	},
	"cisco_xe": {
		Terminators:   ">#",
		DisablePaging: []string{"terminal length 0", "terminal width 511"},
		ConfigEnter:   "configure terminal",
		ConfigExit:    "end",
		SaveCommand:   "write memory",
		Enable:        true,
	},
	"cisco_nxos": {
		Terminators:   ">#",
		DisablePaging: []string{"terminal length 0", "terminal width 511"},
		ConfigEnter:   "configure terminal",
		ConfigExit:    "end",
		SaveCommand:   "copy running-config startup-config",
	},
	"cisco_asa": {
		Terminators:   ">#",
		DisablePaging: []string{"terminal pager 0"},
		ConfigEnter:   "configure terminal",
		ConfigExit:    "end",
		SaveCommand:   "write memory",
		Enable:        true,
	},
	"arista_eos": {
		Terminators:   ">#",
		DisablePaging: []string{"terminal length 0", "terminal width 511"},
		ConfigEnter:   "configure terminal",
		ConfigExit:    "end",
		SaveCommand:   "write memory",
		Enable:        true,
	},
	"juniper_junos": {
		Terminators:   ">#%",
		DisablePaging: []string{"set cli screen-length 0", "set cli screen-width 511"},
		ConfigEnter:    "configure",
		ConfigExit:     "exit configuration-mode",
		SaveCommand:    "commit",
		CommitInConfig: true,
		ExitConfirm:    junosExitConfirm,
		ExitAnswer:     "yes",
	},
	"hp_comware": {
		Terminators:   ">]",
		DisablePaging: []string{"screen-length disable"},
		ConfigEnter:   "system-view",
		ConfigExit:    "return",
		SaveCommand:   "save force",
	},
	"huawei": {
		Terminators:   ">]",
		DisablePaging: []string{"screen-length 0 temporary"},
		ConfigEnter:   "system-view",
		ConfigExit:    "return",
		SaveCommand:   "save",
		SaveConfirm:   yesNo,
		SaveAnswer:    "y",
	},
	"fortinet": {
		Terminators:   "#$",
		DisablePaging: []string{"config system console", "set output standard", "end"},
	},
	"paloalto_panos": {
		Terminators:   ">#",
		DisablePaging: []string{"set cli pager off", "set cli scripting-mode on"},
		ConfigEnter:    "configure",
		ConfigExit:     "exit",
		SaveCommand:    "commit",
		CommitInConfig: true,
	},
	"linux": {
		Terminators: "$#",
	},
}

// DialectFor returns the dialect registered for deviceType.
func DialectFor(deviceType string) (Dialect, error) {
	d, ok := dialects[deviceType]
	if !ok {
		return Dialect{}, fmt.Errorf("no dialect for device type %q", deviceType)
	}
	d.Name = deviceType
	return d, nil
}

// IsPrompt reports whether line is a prompt of this dialect starting with
// base. An empty base accepts any line ending in a terminator.
func (d Dialect) IsPrompt(line, base string) bool {
	if line == "" || !strings.ContainsRune(d.Terminators, rune(line[len(line)-1])) {
		return false
	}
	return strings.HasPrefix(unwrapPrompt(line), base)
}

// BasePrompt strips the terminator from a prompt line, leaving the part
// that stays stable across modes (e.g. "r1" for "r1#" and "r1(config)#").
func (d Dialect) BasePrompt(line string) string {
	if line == "" {
		return ""
	}
	base := unwrapPrompt(line[:len(line)-1])
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}
	return base
}

// unwrapPrompt drops the "<" or "[" Huawei and Comware put around the
// hostname, so "<r1>" and "[r1]" share a base.
func unwrapPrompt(line string) string {
	return strings.TrimLeft(line, "<[")
}
