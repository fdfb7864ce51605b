// Package executortest provides a scriptable SessionProvider for tests.
package executortest

import (
	"context"
	"fmt"
	"sync"

	pe "github.com/andrej220/netexec/pkg/executor"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

// Call records one operation made against a fake session.
type Call struct {
	Op   string // "command", "config" or "save"
	Args []string
}

// Provider opens Sessions whose behaviour is driven by its fields.
// OpenErr fails Open; FailOn and PanicOn fail or panic on the first
// command equal to the key.
type Provider struct {
	OpenErr   error
	Responses map[string]string
	FailOn    map[string]error
	PanicOn   string
	SaveErr   error
	SaveReply string
	CloseErr  error

	mu       sync.Mutex
	opens    int
	closes   int
	calls    []Call
	lastOpen dm.DeviceDescriptor
}

var _ pe.SessionProvider = (*Provider)(nil)

func (p *Provider) Open(ctx context.Context, dev dm.DeviceDescriptor) (pe.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	p.lastOpen = dev
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	return &session{p: p}, nil
}

func (p *Provider) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

func (p *Provider) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Dispatches counts command and config calls, excluding saves.
func (p *Provider) Dispatches() int {
	n := 0
	for _, c := range p.Calls() {
		if c.Op != "save" {
			n++
		}
	}
	return n
}

func (p *Provider) LastOpen() dm.DeviceDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOpen
}

type session struct {
	p *Provider
}

func (s *session) record(op string, args ...string) {
	s.p.mu.Lock()
	s.p.calls = append(s.p.calls, Call{Op: op, Args: args})
	s.p.mu.Unlock()
}

func (s *session) respond(cmd string) (string, error) {
	if s.p.PanicOn != "" && cmd == s.p.PanicOn {
		panic(fmt.Sprintf("device driver crashed on %q", cmd))
	}
	if err, ok := s.p.FailOn[cmd]; ok {
		return "", err
	}
	if out, ok := s.p.Responses[cmd]; ok {
		return out, nil
	}
	return "output of " + cmd, nil
}

func (s *session) SendCommand(ctx context.Context, cmd string) (string, error) {
	s.record("command", cmd)
	return s.respond(cmd)
}

func (s *session) SendConfigSet(ctx context.Context, cmds []string) (string, error) {
	s.record("config", cmds...)
	var out string
	for _, cmd := range cmds {
		r, err := s.respond(cmd)
		if err != nil {
			return "", err
		}
		out += r
	}
	return out, nil
}

func (s *session) SaveConfig(ctx context.Context) (string, error) {
	s.record("save")
	if s.p.SaveErr != nil {
		return "", s.p.SaveErr
	}
	return s.p.SaveReply, nil
}

func (s *session) Close() error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.closes++
	return s.p.CloseErr
}
