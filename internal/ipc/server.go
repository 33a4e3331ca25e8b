package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"stagecue/internal/config"
	"stagecue/internal/deps"
	"stagecue/internal/engine"
	"stagecue/internal/logging"
	"stagecue/internal/runner"
)

// Server exposes engine control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOptions wires the RPC service to its collaborators.
type ServerOptions struct {
	SocketPath string
	Engine     *engine.Engine
	Config     *config.Config
	Logger     *slog.Logger
	// Shutdown asks the daemon to exit; invoked by the Shutdown RPC.
	Shutdown func()
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, opts ServerOptions) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("ipc server requires engine")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	if err := os.RemoveAll(opts.SocketPath); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", opts.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{
		engine:   opts.Engine,
		cfg:      opts.Config,
		logger:   opts.Logger,
		ctx:      ctx,
		shutdown: opts.Shutdown,
	}
	if err := rpcServer.RegisterName("Stagecue", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      opts.SocketPath,
		logger:    opts.Logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	engine   *engine.Engine
	cfg      *config.Config
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "ipc")
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st, err := s.engine.Status()
	if err != nil {
		return err
	}
	resp.Engine = st
	resp.PID = os.Getpid()
	if s.cfg != nil {
		resp.Dependencies = deps.CheckBinaries(deps.Requirements(s.cfg))
	}
	return nil
}

func (s *service) Scenes(_ ScenesRequest, resp *ScenesResponse) error {
	scenes, err := s.engine.Scenes()
	if err != nil {
		return err
	}
	resp.Scenes = scenes
	return nil
}

func (s *service) GoLive(_ GoRequest, resp *GoResponse) error {
	if err := s.engine.GoLive(s.ctx); err != nil {
		return err
	}
	s.log().Info("cue fired via IPC",
		logging.String(logging.FieldEventType, "go_live"))
	if st, err := s.engine.Status(); err == nil {
		for _, ds := range st.Decks {
			if ds.Status == "running" && ds.Cue != nil {
				cue := *ds.Cue
				resp.Fired = &cue
			}
		}
	}
	return nil
}

func (s *service) Stop(req StopRequest, resp *StopResponse) error {
	var err error
	if strings.TrimSpace(req.Deck) == "" {
		err = s.engine.StopPlayback(s.ctx)
	} else {
		err = s.engine.StopDeck(s.ctx, strings.ToUpper(strings.TrimSpace(req.Deck)))
	}
	if err != nil {
		return err
	}
	resp.Stopped = true
	return nil
}

func (s *service) StopAll(_ StopAllRequest, resp *StopAllResponse) error {
	if err := s.engine.EmergencyStop(s.ctx); err != nil {
		return err
	}
	resp.Stopped = true
	s.log().Warn("emergency stop via IPC",
		logging.String(logging.FieldEventType, "emergency_stop"))
	return nil
}

func (s *service) TogglePause(_ PauseRequest, resp *PauseResponse) error {
	if err := s.engine.TogglePause(s.ctx); err != nil {
		return err
	}
	resp.Toggled = true
	return nil
}

func (s *service) Seek(req SeekRequest, resp *SeekResponse) error {
	if err := s.engine.Seek(s.ctx, req.OffsetSeconds); err != nil {
		return err
	}
	resp.Sought = true
	return nil
}

func (s *service) Volume(req VolumeRequest, resp *VolumeResponse) error {
	step, err := parseVolumeStep(req.Step)
	if err != nil {
		return err
	}
	if err := s.engine.SetVolume(s.ctx, step); err != nil {
		return err
	}
	resp.Applied = true
	return nil
}

func (s *service) Blackout(req BlackoutRequest, resp *BlackoutResponse) error {
	if err := s.engine.ForceBlackout(s.ctx, req.On); err != nil {
		return err
	}
	state, err := s.engine.OutputState()
	if err != nil {
		return err
	}
	resp.Output = string(state)
	return nil
}

func (s *service) SelectScene(req SelectSceneRequest, resp *SelectResponse) error {
	if err := s.engine.SelectScene(s.ctx, req.Index); err != nil {
		return err
	}
	resp.Selected = true
	return nil
}

func (s *service) SelectCue(req SelectCueRequest, resp *SelectResponse) error {
	if err := s.engine.SelectCue(s.ctx, req.Index); err != nil {
		return err
	}
	resp.Selected = true
	return nil
}

func (s *service) NextCue(_ NextCueRequest, resp *SelectResponse) error {
	if err := s.engine.NextCue(s.ctx); err != nil {
		return err
	}
	resp.Selected = true
	return nil
}

func (s *service) PrevCue(_ PrevCueRequest, resp *SelectResponse) error {
	if err := s.engine.PrevCue(s.ctx); err != nil {
		return err
	}
	resp.Selected = true
	return nil
}

func (s *service) ShowSave(req ShowSaveRequest, resp *ShowAckResponse) error {
	if err := s.engine.SaveShow(s.ctx, req.Name); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) ShowLoad(req ShowLoadRequest, resp *ShowAckResponse) error {
	if err := s.engine.LoadShow(s.ctx, req.Name); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) ShowList(_ ShowListRequest, resp *ShowListResponse) error {
	infos, err := s.engine.ListShows(s.ctx)
	if err != nil {
		return err
	}
	resp.Shows = make([]ShowInfo, 0, len(infos))
	for _, info := range infos {
		resp.Shows = append(resp.Shows, ShowInfo{
			Name:      info.Name,
			Scenes:    info.Scenes,
			Cues:      info.Cues,
			UpdatedAt: info.UpdatedAt,
		})
	}
	return nil
}

func (s *service) ShowDelete(req ShowDeleteRequest, resp *ShowDeleteResponse) error {
	deleted, err := s.engine.DeleteShow(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.Deleted = deleted
	return nil
}

func (s *service) ShowExport(_ ShowExportRequest, resp *ShowExportResponse) error {
	data, err := s.engine.ExportSnapshot()
	if err != nil {
		return err
	}
	resp.Snapshot = data
	return nil
}

func (s *service) ShowImport(req ShowImportRequest, resp *ShowAckResponse) error {
	if err := s.engine.ImportSnapshot(s.ctx, req.Snapshot); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	if s.shutdown == nil {
		return errors.New("daemon does not accept remote shutdown")
	}
	s.log().Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	s.shutdown()
	resp.ShuttingDown = true
	return nil
}

func parseVolumeStep(raw string) (runner.VolumeStep, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mute":
		return runner.VolumeMute, nil
	case "half":
		return runner.VolumeHalf, nil
	case "full":
		return runner.VolumeFull, nil
	default:
		return "", fmt.Errorf("unknown volume step %q (mute, half, full)", raw)
	}
}
