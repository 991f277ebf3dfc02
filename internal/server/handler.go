package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/udisondev/wordquizzle/internal/match"
	"github.com/udisondev/wordquizzle/internal/presence"
	"github.com/udisondev/wordquizzle/internal/protocol"
	"github.com/udisondev/wordquizzle/internal/store"
)

// Reply lines that don't belong to a single command.
const (
	replyMalformed   = "Error: malformed request."
	replyNotLoggedIn = "Error: you are not logged in."
	replyInternal    = "Error: internal server error."
)

// Handler executes session commands. Every method returns the exact line
// the client sees; the texts are part of the protocol and tests pin them.
type Handler struct {
	store    *store.Store
	registry *presence.Registry
	matches  *match.Orchestrator
}

// NewHandler builds the command dispatcher.
func NewHandler(st *store.Store, registry *presence.Registry, matches *match.Orchestrator) *Handler {
	return &Handler{store: st, registry: registry, matches: matches}
}

// Handle runs one raw request frame to completion and returns the reply
// line (empty when the command wrote its replies itself) plus whether the
// session stays open.
func (h *Handler) Handle(ctx context.Context, sess *Session, data []byte) (reply string, keep bool) {
	req, err := protocol.ParseRequest(data)
	if err != nil {
		slog.Debug("malformed request", "conn", sess.ID(), "err", err)
		return replyMalformed, true
	}

	slog.Debug("request", "conn", sess.ID(), "op", req.Op)

	switch req.Op {
	case protocol.OpLogin:
		return h.login(sess, req.Args[0], req.Args[1], req.Args[2]), true
	case protocol.OpLogout:
		return h.logout(sess)
	case protocol.OpAddFriend:
		return h.addFriend(sess, req.Args[0]), true
	case protocol.OpFriendList:
		return h.friendList(sess), true
	case protocol.OpScore:
		return h.score(sess), true
	case protocol.OpScoreboard:
		return h.scoreboard(sess), true
	case protocol.OpMatch:
		return h.match(ctx, sess, req.Args[0]), true
	}
	return replyMalformed, true
}

// Disconnect is the brutal logout: the connection died, so whoever it
// logged in goes offline without a reply.
func (h *Handler) Disconnect(sess *Session) {
	if nick, ok := h.registry.Unbind(sess.ID()); ok {
		slog.Info("user logged out", "login", nick, "conn", sess.ID(), "reason", "connection lost")
	}
}

func (h *Handler) login(sess *Session, nickname, password, udpPort string) string {
	port, err := strconv.Atoi(udpPort)
	if err != nil || port < 1 || port > 65535 {
		return replyMalformed
	}

	if _, err := h.store.Lookup(nickname); err != nil {
		return fmt.Sprintf("Login error: user %s not found. Please register.", nickname)
	}
	if h.registry.Online(nickname) {
		return fmt.Sprintf("Login error: %s is already logged in.", nickname)
	}
	if _, bound := h.registry.Nickname(sess.ID()); bound {
		return "Login error: you are already logged with another account."
	}
	if err := h.store.Verify(nickname, password); err != nil {
		return "Login error: wrong password."
	}

	endpoint := &net.UDPAddr{IP: sess.IP(), Port: port}
	if err := h.registry.Bind(sess.ID(), nickname, endpoint); err != nil {
		// Пока проверяли пароль, ник могли занять с другого соединения
		if errors.Is(err, presence.ErrNicknameOnline) {
			return fmt.Sprintf("Login error: %s is already logged in.", nickname)
		}
		return "Login error: you are already logged with another account."
	}

	slog.Info("user logged in", "login", nickname, "conn", sess.ID(), "endpoint", endpoint)
	return "Login successful."
}

func (h *Handler) logout(sess *Session) (string, bool) {
	nickname, ok := h.registry.Unbind(sess.ID())
	if !ok {
		return replyNotLoggedIn, true
	}

	slog.Info("user logged out", "login", nickname, "conn", sess.ID())
	return "Logout successful", false
}

func (h *Handler) addFriend(sess *Session, friend string) string {
	nickname, ok := h.registry.Nickname(sess.ID())
	if !ok {
		return replyNotLoggedIn
	}

	err := h.store.AddFriendship(nickname, friend)
	switch {
	case err == nil:
		slog.Info("friendship created", "login", nickname, "friend", friend)
		return fmt.Sprintf("%s is now your friend.", friend)
	case errors.Is(err, store.ErrSelfFriendship):
		return "Add friend error: you cannot add yourself as a friend."
	case errors.Is(err, store.ErrUnknownUser):
		return fmt.Sprintf("Add friend error: user %s not found.", friend)
	case errors.Is(err, store.ErrAlreadyFriends):
		return fmt.Sprintf("Add friend error: you and %s are already friends.", friend)
	default:
		slog.Error("add friend failed", "login", nickname, "friend", friend, "err", err)
		return replyInternal
	}
}

func (h *Handler) friendList(sess *Session) string {
	nickname, ok := h.registry.Nickname(sess.ID())
	if !ok {
		return replyNotLoggedIn
	}

	u, err := h.store.Lookup(nickname)
	if err != nil {
		slog.Error("friend list lookup failed", "login", nickname, "err", err)
		return replyInternal
	}

	if len(u.Friends) == 0 {
		return "You currently have no friends, add some!"
	}

	var b strings.Builder
	b.WriteString("Your friends are: ")
	for _, f := range u.Friends {
		b.WriteString(f)
		b.WriteByte(' ')
	}
	return b.String()
}

func (h *Handler) score(sess *Session) string {
	nickname, ok := h.registry.Nickname(sess.ID())
	if !ok {
		return replyNotLoggedIn
	}

	u, err := h.store.Lookup(nickname)
	if err != nil {
		slog.Error("score lookup failed", "login", nickname, "err", err)
		return replyInternal
	}

	return fmt.Sprintf("%s, your score is: %d", nickname, u.Score)
}

func (h *Handler) scoreboard(sess *Session) string {
	nickname, ok := h.registry.Nickname(sess.ID())
	if !ok {
		return replyNotLoggedIn
	}

	board, err := h.store.Scoreboard(nickname)
	if err != nil {
		slog.Error("scoreboard failed", "login", nickname, "err", err)
		return replyInternal
	}

	var b strings.Builder
	for _, e := range board {
		fmt.Fprintf(&b, "%s %d ", e.Nickname, e.Score)
	}
	return b.String()
}

// match runs preflight checks inline and, when they pass, hands the session
// to the orchestrator for the rest of the exchange. The orchestrator writes
// every further line itself, so the dispatcher gets an empty reply back.
func (h *Handler) match(ctx context.Context, sess *Session, challenged string) string {
	challenger, ok := h.registry.Nickname(sess.ID())
	if !ok {
		return replyNotLoggedIn
	}

	if challenger == challenged {
		return "Match error: you cannot challenge yourself."
	}

	u, err := h.store.Lookup(challenger)
	if err != nil {
		slog.Error("match lookup failed", "login", challenger, "err", err)
		return replyInternal
	}
	if !slices.Contains(u.Friends, challenged) {
		return fmt.Sprintf("Match error: user %s and you are not friends.", challenged)
	}
	if !h.registry.Online(challenged) {
		return fmt.Sprintf("Match error: %s is offline", challenged)
	}

	h.matches.Run(ctx, sess.Conn(), challenger, challenged)
	return ""
}
