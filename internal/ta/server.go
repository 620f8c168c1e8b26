package ta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/taproto"
)

// Server is the UDS front door to the TA Dispatcher. It mirrors the
// listener setup in the teacher's internal/signer/server.go — stale
// socket cleanup, 0600 permissions — but frames requests with
// internal/taproto instead of gRPC, since the wire protocol here is the
// spec's own four-slot binary convention rather than protobuf.
type Server struct {
	ta         *Context
	listener   net.Listener
	socketPath string
	log        *zap.Logger

	wg sync.WaitGroup
}

// NewServer binds socketPath and wraps ta for serving.
func NewServer(ta *Context, socketPath string, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("ta: create socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ta: remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("ta: listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		lis.Close()
		return nil, fmt.Errorf("ta: chmod socket: %w", err)
	}

	return &Server{ta: ta, listener: lis, socketPath: socketPath, log: log}, nil
}

// Serve accepts connections until the listener is closed. Each
// connection is a single logical session: the first frame is implicitly
// an OpenSession, and every subsequent frame on that connection is an
// InvokeCommand against the resulting session_id until the connection
// closes, which implicitly calls CloseSession.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Stop closes the listener, waits for in-flight connections to finish,
// and removes the socket file.
func (s *Server) Stop(ctx context.Context) error {
	_ = s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		os.Remove(s.socketPath)
		return ctx.Err()
	}
	os.Remove(s.socketPath)
	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess, err := s.ta.OpenSession(conn.RemoteAddr().String())
	if err != nil {
		s.log.Error("open session failed", zap.Error(err))
		return
	}
	defer s.ta.CloseSession(sess.ID)

	for {
		req, err := taproto.ReadRequest(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("read request failed, closing connection", zap.Error(err))
			}
			return
		}

		out, reqSize, kind := s.ta.Invoke(sess.ID, req.Command, req.Input, req.OutputCapMax)
		resp := taproto.Response{Status: byte(kind), Output: out, ReqSize: reqSize}
		if err := taproto.WriteResponse(conn, resp); err != nil {
			s.log.Debug("write response failed, closing connection", zap.Error(err))
			return
		}
	}
}
