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
	"slices"
	"sync"

	"stemforge/internal/api"
	"stemforge/internal/daemon"
	"stemforge/internal/logging"
	"stemforge/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown is
// invoked when a client requests the daemon to stop; it may be nil.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, shutdown func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: ctx, shutdown: shutdown}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
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
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
	stopOnce sync.Once
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	out, err := s.daemon.Submit(s.ctx, req.SubmitRequest)
	if err != nil {
		return err
	}
	resp.SubmitResponse = out
	return nil
}

func (s *service) Status(req StatusRequest, resp *StatusResponse) error {
	snap, err := s.daemon.Job(req.ID)
	if err != nil {
		return err
	}
	resp.Job = api.FromSnapshot(snap)
	return nil
}

func (s *service) Queue(_ QueueRequest, resp *QueueResponse) error {
	resp.Summary = s.daemon.Queue()
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	filter := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		filter = append(filter, status)
	}
	jobs := s.daemon.Jobs()
	resp.Jobs = make([]api.Job, 0, len(jobs))
	for _, snap := range jobs {
		if len(filter) > 0 && !slices.Contains(filter, snap.Status) {
			continue
		}
		resp.Jobs = append(resp.Jobs, api.FromSnapshot(snap))
	}
	return nil
}

func (s *service) UpdateMetadata(req UpdateMetadataRequest, resp *UpdateMetadataResponse) error {
	snap, err := s.daemon.UpdateMetadata(req.ID, api.MetadataRequest{Metadata: req.Metadata})
	if err != nil {
		return err
	}
	resp.Job = api.FromSnapshot(snap)
	return nil
}

func (s *service) DaemonStatus(_ DaemonStatusRequest, resp *DaemonStatusResponse) error {
	resp.Status = daemon.ToAPIStatus(s.daemon.Status(s.ctx))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	if s.shutdown == nil {
		resp.Message = "daemon shutdown is not available over IPC"
		return nil
	}
	s.stopOnce.Do(func() {
		s.logger.Info("daemon stop requested via IPC",
			logging.String(logging.FieldEventType, "daemon_stop_requested"))
		go s.shutdown()
	})
	resp.Stopping = true
	resp.Message = "daemon stopping after the current job"
	return nil
}
