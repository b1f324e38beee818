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
	"time"

	"herhaven/internal/api"
	"herhaven/internal/daemon"
	"herhaven/internal/logging"
	"herhaven/internal/queue"
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

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
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
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

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
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
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
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	kind, err := queue.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	out, err := s.daemon.Submit(s.ctx, kind, req.Payload)
	if err != nil {
		return err
	}
	s.logger.Info("submission accepted via IPC",
		logging.String(logging.FieldQueue, out.Kind),
		logging.String(logging.FieldEntryID, out.ID),
		logging.String(logging.FieldEventType, "submission_accepted"),
	)
	*resp = out
	return nil
}

func (s *service) QueueStatus(req QueueRequest, resp *QueueStatusResponse) error {
	kind, err := queue.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	status, err := s.daemon.QueueStatus(s.ctx, kind)
	if err != nil {
		return err
	}
	*resp = status
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	kind, err := queue.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	var statuses []queue.Status
	for _, value := range req.Statuses {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, queue.Status(strings.ToLower(trimmed)))
		}
	}
	entries, err := s.daemon.ListEntries(s.ctx, kind, statuses, req.WithPayload)
	if err != nil {
		return err
	}
	resp.Entries = entries
	return nil
}

func (s *service) QueueDrain(req QueueRequest, resp *QueueDrainResponse) error {
	kind, err := queue.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	info, err := s.daemon.Drain(s.ctx, kind)
	if err != nil {
		return err
	}
	*resp = info
	return nil
}

func (s *service) QueueClearSynced(req QueueRequest, resp *QueueClearResponse) error {
	kind, err := queue.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	out, err := s.daemon.ClearSynced(s.ctx, kind)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) QueueRetainActive(req QueueRequest, resp *QueueClearResponse) error {
	kind, err := queue.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	out, err := s.daemon.RetainActive(s.ctx, kind)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueClearResponse) error {
	kind, err := queue.ParseKind(req.Kind)
	if err != nil {
		return err
	}
	out, err := s.daemon.RemoveEntry(s.ctx, kind, req.ID)
	if errors.Is(err, daemon.ErrEntryNotFound) {
		resp.Removed = 0
		return nil
	}
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	if err != nil {
		resp.Message = fmt.Sprintf("%s: %v", message, err)
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	hub := s.daemon.LogStream()
	if hub == nil {
		*resp = api.LogStreamResponse{}
		return nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}
	if !req.Follow && req.Since == 0 {
		events, next := hub.Tail(limit)
		*resp = api.LogStreamResponse{Events: api.ConvertLogEvents(events), Next: next}
		return nil
	}

	ctx := s.ctx
	if req.Follow {
		wait := time.Duration(req.WaitMillis) * time.Millisecond
		if wait <= 0 || wait > 30*time.Second {
			wait = 10 * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	events, next, err := hub.Fetch(ctx, req.Since, limit, req.Follow)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	*resp = api.LogStreamResponse{Events: api.ConvertLogEvents(events), Next: next}
	return nil
}
