// Package registration is the HTTP front door for account creation. Accounts
// are made over HTTP/JSON so the line protocol stays reserved for logged-in
// play.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/udisondev/wordquizzle/internal/store"
)

// Status lines returned to the registering client.
const (
	StatusSucceeded     = "Registration succeeded"
	StatusNicknameTaken = "Nickname already taken."
	StatusBadNickname   = "Invalid username"
	StatusBadPassword   = "Invalid password"
)

// maxNicknameLen keeps nicknames short enough for protocol frames and
// scoreboard lines.
const maxNicknameLen = 32

// Server is the Echo application serving POST /register.
type Server struct {
	echo  *echo.Echo
	store *store.Store
}

// New constructs the registration app.
func New(st *store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, store: st}
	e.POST("/register", s.handleRegister)
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Addr returns the bound listen address once Run has started the server.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type registerRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type registerResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be JSON")
	}

	if !validNickname(req.Nickname) {
		return c.JSON(http.StatusOK, registerResponse{Status: StatusBadNickname})
	}
	if req.Password == "" {
		return c.JSON(http.StatusOK, registerResponse{Status: StatusBadPassword})
	}

	switch err := s.store.Register(req.Nickname, req.Password); {
	case err == nil:
		slog.Info("user registered", "nickname", req.Nickname)
		return c.JSON(http.StatusOK, registerResponse{Status: StatusSucceeded})
	case errors.Is(err, store.ErrNicknameTaken):
		return c.JSON(http.StatusOK, registerResponse{Status: StatusNicknameTaken})
	default:
		slog.Error("registration failed", "nickname", req.Nickname, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}
}

// validNickname rejects names that would not survive the line protocol:
// empty, longer than maxNicknameLen, or containing whitespace or '/'.
func validNickname(nickname string) bool {
	if nickname == "" || len(nickname) > maxNicknameLen {
		return false
	}
	if strings.ContainsRune(nickname, '/') {
		return false
	}
	return !strings.ContainsFunc(nickname, unicode.IsSpace)
}
