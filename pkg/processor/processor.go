// Package processor cleans raw device responses with configurable
// processor chains.
package processor

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	ProcessorTypeStripANSI         string = "strip_ansi"
	ProcessorTypeNormalizeNewlines string = "normalize_newlines"
	ProcessorTypeTrimRight         string = "trim_right"
	ProcessorTypeTrimBlankEdges    string = "trim_blank_edges"
)

// DefaultOrder is the chain applied to every device response.
var DefaultOrder = []string{
	ProcessorTypeStripANSI,
	ProcessorTypeNormalizeNewlines,
	ProcessorTypeTrimRight,
	ProcessorTypeTrimBlankEdges,
}

// Processor defines the interface for processing output lines.
type Processor interface {
	Process([]string) ([]string, error)
	Name() string
}

// ProcessorChain manages a collection of processors and applies them in sequence.
type ProcessorChain struct {
	processors map[string]Processor
}

func NewProcessorChain() *ProcessorChain {
	pc := &ProcessorChain{
		processors: make(map[string]Processor),
	}
	pc.registerDefaults()
	return pc
}

func (pc *ProcessorChain) registerDefaults() {
	pc.Register(&StripANSIProcessor{})
	pc.Register(&NormalizeNewlinesProcessor{})
	pc.Register(&TrimRightProcessor{})
	pc.Register(&TrimBlankEdgesProcessor{})
}

// Register adds a processor to the chain.
func (pc *ProcessorChain) Register(p Processor) {
	pc.processors[p.Name()] = p
}

// Process applies the named processors to lines in the given order.
func (pc *ProcessorChain) Process(lines []string, processorNames ...string) ([]string, error) {
	for _, name := range processorNames {
		if _, exists := pc.processors[name]; !exists {
			return nil, fmt.Errorf("processor %q not registered", name)
		}
	}
	if len(lines) == 0 {
		return lines, nil
	}
	result := lines
	for _, name := range processorNames {
		var err error
		result, err = pc.processors[name].Process(result)
		if err != nil {
			return nil, fmt.Errorf("%s processor failed: %w", name, err)
		}
		if len(result) == 0 {
			break
		}
	}
	return result, nil
}

// Clean runs the default chain over a raw response and joins it back.
func (pc *ProcessorChain) Clean(raw string) (string, error) {
	lines, err := pc.Process(strings.Split(raw, "\n"), DefaultOrder...)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// StripANSIProcessor removes terminal escape sequences.
type StripANSIProcessor struct{}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b[()][AB012]|\x1b[=>]`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func (p *StripANSIProcessor) Name() string { return ProcessorTypeStripANSI }
func (p *StripANSIProcessor) Process(lines []string) ([]string, error) {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = StripANSI(line)
	}
	return out, nil
}

// NormalizeNewlinesProcessor drops carriage returns. A bare CR in the
// middle of a line means the terminal rewrote it, so only the text after
// the last CR is kept.
type NormalizeNewlinesProcessor struct{}

func (p *NormalizeNewlinesProcessor) Name() string { return ProcessorTypeNormalizeNewlines }
func (p *NormalizeNewlinesProcessor) Process(lines []string) ([]string, error) {
	out := make([]string, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if idx := strings.LastIndex(line, "\r"); idx >= 0 {
			line = line[idx+1:]
		}
		out[i] = line
	}
	return out, nil
}

// TrimRightProcessor trims trailing whitespace from each line.
type TrimRightProcessor struct{}

func (p *TrimRightProcessor) Name() string { return ProcessorTypeTrimRight }
func (p *TrimRightProcessor) Process(lines []string) ([]string, error) {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimRight(line, " \t")
	}
	return out, nil
}

// TrimBlankEdgesProcessor drops leading and trailing blank lines.
type TrimBlankEdgesProcessor struct{}

func (p *TrimBlankEdgesProcessor) Name() string { return ProcessorTypeTrimBlankEdges }
func (p *TrimBlankEdgesProcessor) Process(lines []string) ([]string, error) {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end], nil
}
