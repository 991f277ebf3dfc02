// Package server implements the Word Quizzle session server: one TCP
// connection per client, one request per read, all request handling
// serialized through a bounded worker pool.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/udisondev/wordquizzle/internal/config"
	"github.com/udisondev/wordquizzle/internal/match"
	"github.com/udisondev/wordquizzle/internal/presence"
	"github.com/udisondev/wordquizzle/internal/protocol"
	"github.com/udisondev/wordquizzle/internal/store"
	"github.com/udisondev/wordquizzle/internal/words"
)

// ServerOption is a functional option for Server configuration.
type ServerOption func(**presence.Registry)

// WithRegistry sets a custom presence registry (useful for tests that need
// to observe who is online from outside).
func WithRegistry(r *presence.Registry) ServerOption {
	return func(current **presence.Registry) {
		*current = r
	}
}

// Server accepts client sessions on the configured TCP port and dispatches
// their requests.
//
// Concurrency contract: each session runs a goroutine that reads exactly one
// request, hands it to the worker pool, and does not read again until the
// handler returned. A client therefore never has two requests in flight, and
// total handler parallelism is capped by cfg.Workers.
type Server struct {
	cfg      config.Server
	store    *store.Store
	registry *presence.Registry

	readPool *BytePool
	pool     *workerpool.WorkerPool
	handler  *Handler

	listener net.Listener
	mu       sync.Mutex
}

// NewServer wires the session server with its collaborators.
func NewServer(cfg config.Server, st *store.Store, provider words.Provider, opts ...ServerOption) *Server {
	registry := presence.NewRegistry()

	// Применяем опции
	for _, opt := range opts {
		if opt != nil {
			opt(&registry)
		}
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = config.DefaultServer().Workers
	}

	matches := match.NewOrchestrator(cfg.Match, st, registry, provider)

	return &Server{
		cfg:      cfg,
		store:    st,
		registry: registry,
		readPool: NewBytePool(),
		pool:     workerpool.New(workers),
		handler:  NewHandler(st, registry, matches),
	}
}

// Registry возвращает реестр присутствия (для интеграции с тестами).
func (s *Server) Registry() *presence.Registry {
	return s.registry
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close закрывает listener и останавливает сервер.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run begins listening for client sessions.
// Создаёт listener на cfg.BindAddress:cfg.Port и запускает accept loop.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener и запускает accept loop.
// Используется для тестирования с произвольным listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("session server started", "address", ln.Addr())
		acceptLoop(ctx, &wg, s, ln)
	})

	wg.Wait()

	// Очередь пула дорабатывает хвост задач после закрытия всех сессий
	s.pool.StopWait()

	return nil
}

func acceptLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	srv *Server,
	ln net.Listener,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("Failed to accept new connection", "error", err)
				continue
			}

			// Enable TCP keepalive (detect dead connections)
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				if err := tcpConn.SetKeepAlive(true); err != nil {
					slog.Warn("set keepalive failed", "error", err)
				}
				if err := tcpConn.SetKeepAlivePeriod(30 * time.Second); err != nil {
					slog.Warn("set keepalive period failed", "error", err)
				}
			}

			wg.Go(func() {
				handleConnection(ctx, srv, conn)
			})
		}
	}
}

func handleConnection(ctx context.Context, srv *Server, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sess, err := NewSession(conn)
	if err != nil {
		slog.Error("failed to create session", "remote", conn.RemoteAddr(), "err", err)
		return
	}

	slog.Info("new connection", "remote", conn.RemoteAddr(), "conn", sess.ID())

	readBuf := srv.readPool.Get()
	defer srv.readPool.Put(readBuf)

	for {
		select {
		case <-ctx.Done():
			srv.disconnect(sess)
			return
		default:
			if keep := handleRequest(ctx, srv, sess, readBuf); !keep {
				return
			}
		}
	}
}

// handleRequest reads one frame and runs its handler to completion before
// returning. The pool call is the serialization point: no second read
// happens for this session while the handler runs.
func handleRequest(ctx context.Context, srv *Server, sess *Session, buf []byte) bool {
	data, err := protocol.ReadFrame(sess.conn, buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			slog.Info("client disconnected", "conn", sess.ID())
		} else if !errors.Is(err, net.ErrClosed) {
			slog.Debug("session read failed", "conn", sess.ID(), "err", err)
		}
		srv.disconnect(sess)
		return false
	}

	var reply string
	var keep bool
	srv.pool.SubmitWait(func() {
		reply, keep = srv.handler.Handle(ctx, sess, data)
	})

	if reply != "" {
		if err := sess.Reply(reply); err != nil {
			slog.Debug("session write failed", "conn", sess.ID(), "err", err)
			srv.disconnect(sess)
			return false
		}
	}

	return keep
}

// disconnect runs the brutal logout through the pool like any other command.
func (srv *Server) disconnect(sess *Session) {
	srv.pool.SubmitWait(func() {
		srv.handler.Disconnect(sess)
	})
}
