package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"stagecue/internal/logging"
	"stagecue/internal/procreg"
	"stagecue/internal/services"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// BlackoutOptions configures the ffplay-backed blackout surface.
type BlackoutOptions struct {
	Binary     string
	Left       int
	Top        int
	Fullscreen bool
	Grace      time.Duration
	Registry   *procreg.Registry
	Logger     *slog.Logger
}

// FFplaySurface covers the second screen with a solid black window rendered
// by ffplay from a lavfi color source. The source never ends, so the window
// stays up until it is torn down.
type FFplaySurface struct {
	opts   BlackoutOptions
	logger *slog.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	done       chan struct{}
	token      procreg.Token
	registered bool
}

// NewFFplaySurface constructs the surface. It does not start a process.
func NewFFplaySurface(opts BlackoutOptions) *FFplaySurface {
	if opts.Binary == "" {
		opts.Binary = "ffplay"
	}
	if opts.Grace <= 0 {
		opts.Grace = 1500 * time.Millisecond
	}
	return &FFplaySurface{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "blackout"),
	}
}

// Available reports whether the player binary can be found.
func (s *FFplaySurface) Available() bool {
	_, err := lookPath(s.opts.Binary)
	return err == nil
}

// ShowBlackout raises the black window. Calling it while the window is
// already up is a no-op.
func (s *FFplaySurface) ShowBlackout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", "color=c=black:s=1920x1080",
		"-an",
		"-left", strconv.Itoa(s.opts.Left),
		"-top", strconv.Itoa(s.opts.Top),
		"-alwaysontop",
	}
	if s.opts.Fullscreen {
		args = append(args, "-fs")
	}

	cmd := commandContext(ctx, s.opts.Binary, args...)
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrSpawn, "blackout", "show", "start blackout player", err)
	}

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	if s.opts.Registry != nil {
		s.token = s.opts.Registry.Register(procreg.Entry{
			Label:  "blackout",
			PID:    cmd.Process.Pid,
			Signal: cmd.Process.Signal,
			Done:   done,
		})
		s.registered = true
	}

	go func() {
		err := cmd.Wait()
		close(done)
		s.mu.Lock()
		crashed := s.cmd == cmd
		if crashed {
			s.cmd = nil
			if s.registered && s.opts.Registry != nil {
				s.opts.Registry.Unregister(s.token)
				s.registered = false
			}
		}
		s.mu.Unlock()
		if crashed {
			s.logger.Warn("blackout player exited unexpectedly",
				logging.Error(err),
				logging.String(logging.FieldEventType, "blackout_player_exited"),
			)
		}
	}()

	s.logger.Info("blackout player started", logging.Int("pid", cmd.Process.Pid))
	return nil
}

// HideBlackout tears the black window down. Safe to call when it is not up.
func (s *FFplaySurface) HideBlackout() {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	token := s.token
	registered := s.registered
	s.cmd = nil
	s.registered = false
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	procreg.TerminateEntry(procreg.Entry{
		PID:    cmd.Process.Pid,
		Signal: cmd.Process.Signal,
		Done:   done,
	}, s.opts.Grace)
	if registered && s.opts.Registry != nil {
		s.opts.Registry.Unregister(token)
	}
}

// Unavailable is a surface provider for hosts without a player binary. The
// screen simply keeps whatever the desktop shows.
type Unavailable struct{}

func (Unavailable) Available() bool                    { return false }
func (Unavailable) ShowBlackout(context.Context) error { return fmt.Errorf("no blackout surface") }
func (Unavailable) HideBlackout()                      {}
