package executor

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/andrej220/netexec/pkg/processor"
	"github.com/andrej220/netexec/pkg/lg"
	dm "github.com/andrej220/netexec/pkg/shared-models"
)

var passwordPrompt = regexp.MustCompile(`(?i)password:?$`)

var _ Session = (*shell)(nil)

// shell drives an interactive CLI: it writes one line at a time and reads
// until the device prints its prompt again.
type shell struct {
	dialect     Dialect
	base        string
	readTimeout time.Duration

	stdin   io.Writer
	chunks  chan []byte
	readErr error
	done    chan struct{}

	chain  *processor.ProcessorChain
	logger lg.Logger

	closeFn   func() error
	closeOnce sync.Once
	closeErr  error
}

func newShell(stdin io.Writer, stdout io.Reader, d Dialect, readTimeout time.Duration, logger lg.Logger, closeFn func() error) *shell {
	s := &shell{
		dialect:     d,
		readTimeout: readTimeout,
		stdin:       stdin,
		chunks:      make(chan []byte, 64),
		done:        make(chan struct{}),
		chain:       processor.NewProcessorChain(),
		logger:      logger,
		closeFn:     closeFn,
	}
	go s.pump(stdout)
	return s
}

// pump copies device output into chunks until the reader fails or the
// shell is closed.
func (s *shell) pump(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

// start waits for the login prompt, learns the base prompt, enters
// privileged mode when possible and disables paging.
func (s *shell) start(ctx context.Context, secret string) error {
	if _, err := s.readUntil(ctx, s.anyPrompt); err != nil {
		return fmt.Errorf("waiting for prompt: %w", err)
	}
	// the first match may come from a banner; ask again for a clean prompt
	if err := s.sendLine(""); err != nil {
		return err
	}
	raw, err := s.readUntil(ctx, s.anyPrompt)
	if err != nil {
		return fmt.Errorf("waiting for prompt: %w", err)
	}
	prompt := lastLine(raw)
	s.base = s.dialect.BasePrompt(prompt)
	s.logger.Debug("Prompt detected", lg.String("prompt", prompt), lg.String("base", s.base))

	if s.dialect.Enable && secret != "" && strings.HasSuffix(prompt, ">") {
		if err := s.enable(ctx, secret); err != nil {
			return err
		}
	}

	for _, cmd := range s.dialect.DisablePaging {
		if _, err := s.exchange(ctx, cmd); err != nil {
			return fmt.Errorf("disable paging: %w", err)
		}
	}
	return nil
}

func (s *shell) enable(ctx context.Context, secret string) error {
	if err := s.sendLine("enable"); err != nil {
		return err
	}
	raw, err := s.readUntil(ctx, func(buf string) bool {
		return passwordPrompt.MatchString(lastLine(buf)) || s.atPrompt(buf)
	})
	if err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	if passwordPrompt.MatchString(lastLine(raw)) {
		if err := s.sendLine(secret); err != nil {
			return err
		}
		if raw, err = s.readUntil(ctx, s.atPrompt); err != nil {
			return fmt.Errorf("enable: %w", err)
		}
	}
	if !strings.HasSuffix(lastLine(raw), "#") {
		return dm.NewError(dm.KindConnectionError, "failed to enter enable mode", nil)
	}
	return nil
}

func (s *shell) SendCommand(ctx context.Context, cmd string) (string, error) {
	raw, err := s.exchange(ctx, cmd)
	if err != nil {
		return "", err
	}
	return s.chain.Clean(stripEchoAndPrompt(raw, cmd))
}

func (s *shell) SendConfigSet(ctx context.Context, cmds []string) (string, error) {
	steps := make([]string, 0, len(cmds)+1)
	if s.dialect.ConfigEnter != "" {
		steps = append(steps, s.dialect.ConfigEnter)
	}
	steps = append(steps, cmds...)

	var transcript strings.Builder
	for _, step := range steps {
		raw, err := s.exchange(ctx, step)
		if err != nil {
			return "", err
		}
		transcript.WriteString(raw)
	}
	if s.dialect.ConfigExit != "" {
		raw, err := s.exitConfig(ctx)
		if err != nil {
			return "", err
		}
		transcript.WriteString(raw)
	}
	return s.chain.Clean(transcript.String())
}

// SaveConfig persists the running configuration. Commit-based dialects
// keep uncommitted changes in the candidate configuration after leaving
// configuration mode, so the commit is sent from a fresh configuration
// session.
func (s *shell) SaveConfig(ctx context.Context) (string, error) {
	d := s.dialect
	if d.SaveCommand == "" {
		return "", nil
	}
	if d.CommitInConfig && d.ConfigEnter != "" {
		if _, err := s.exchange(ctx, d.ConfigEnter); err != nil {
			return "", fmt.Errorf("save config: %w", err)
		}
	}
	raw, err := s.exchangeConfirm(ctx, d.SaveCommand, d.SaveConfirm, d.SaveAnswer)
	if err != nil {
		return "", fmt.Errorf("save config: %w", err)
	}
	if d.CommitInConfig && d.ConfigExit != "" {
		if _, err := s.exitConfig(ctx); err != nil {
			return "", fmt.Errorf("save config: %w", err)
		}
	}
	return s.chain.Clean(stripEchoAndPrompt(raw, d.SaveCommand))
}

func (s *shell) exitConfig(ctx context.Context) (string, error) {
	return s.exchangeConfirm(ctx, s.dialect.ConfigExit, s.dialect.ExitConfirm, s.dialect.ExitAnswer)
}

// Close is safe to call more than once.
func (s *shell) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

func (s *shell) exchange(ctx context.Context, cmd string) (string, error) {
	if err := s.sendLine(cmd); err != nil {
		return "", err
	}
	return s.readUntil(ctx, s.atPrompt)
}

// exchangeConfirm sends cmd and, when the device asks a question matched
// by confirm, replies with answer before waiting for the prompt.
func (s *shell) exchangeConfirm(ctx context.Context, cmd string, confirm *regexp.Regexp, answer string) (string, error) {
	if err := s.sendLine(cmd); err != nil {
		return "", err
	}
	asked := func(buf string) bool {
		return confirm != nil && confirm.MatchString(lastLine(buf))
	}
	raw, err := s.readUntil(ctx, func(buf string) bool { return s.atPrompt(buf) || asked(buf) })
	if err != nil {
		return "", err
	}
	if s.atPrompt(raw) {
		return raw, nil
	}
	if err := s.sendLine(answer); err != nil {
		return "", err
	}
	more, err := s.readUntil(ctx, s.atPrompt)
	if err != nil {
		return "", err
	}
	return raw + more, nil
}

func (s *shell) sendLine(line string) error {
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		return dm.NewError(dm.KindConnectionError, "write to session", err)
	}
	return nil
}

// readUntil accumulates output until match accepts it, the read timeout
// expires or the device closes the session.
func (s *shell) readUntil(ctx context.Context, match func(buf string) bool) (string, error) {
	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	var buf strings.Builder
	for {
		if match(buf.String()) {
			return buf.String(), nil
		}
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return buf.String(), dm.NewError(dm.KindConnectionError, "session closed by device", s.readErr)
			}
			buf.Write(chunk)
		case <-timer.C:
			return buf.String(), dm.NewError(dm.KindConnectionTimeout,
				fmt.Sprintf("pattern not detected in output after %s", s.readTimeout), nil)
		case <-ctx.Done():
			return buf.String(), ctx.Err()
		}
	}
}

func (s *shell) atPrompt(buf string) bool {
	return s.dialect.IsPrompt(lastLine(buf), s.base)
}

func (s *shell) anyPrompt(buf string) bool {
	return s.dialect.IsPrompt(lastLine(buf), "")
}

// lastLine returns the final line of buf as a terminal would show it.
func lastLine(buf string) string {
	if i := strings.LastIndexByte(buf, '\n'); i >= 0 {
		buf = buf[i+1:]
	}
	line := strings.TrimRight(processor.StripANSI(buf), " \t\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	return line
}

// stripEchoAndPrompt drops the echoed command line and the trailing prompt.
func stripEchoAndPrompt(raw, cmd string) string {
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && strings.Contains(processor.StripANSI(lines[0]), strings.TrimSpace(cmd)) {
		lines = lines[1:]
	}
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
