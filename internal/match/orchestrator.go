package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/udisondev/wordquizzle/internal/config"
	"github.com/udisondev/wordquizzle/internal/presence"
	"github.com/udisondev/wordquizzle/internal/protocol"
	"github.com/udisondev/wordquizzle/internal/store"
	"github.com/udisondev/wordquizzle/internal/words"
)

// setupTimeout bounds the translation fetch that precedes an invitation.
const setupTimeout = 15 * time.Second

// Orchestrator plays matches between online friends. It owns no goroutines
// of its own; Run executes entirely on the caller's worker.
type Orchestrator struct {
	rules    config.MatchConfig
	store    *store.Store
	registry *presence.Registry
	words    words.Provider
}

// NewOrchestrator собирает оркестратор дуэлей поверх общих зависимостей
// сервера.
func NewOrchestrator(rules config.MatchConfig, st *store.Store, registry *presence.Registry, provider words.Provider) *Orchestrator {
	return &Orchestrator{
		rules:    rules,
		store:    st,
		registry: registry,
		words:    provider,
	}
}

// Run plays one match from invitation to persisted scores. Every reply the
// challenger sees, including errors, is written to conn by Run itself.
func (o *Orchestrator) Run(ctx context.Context, conn net.Conn, challenger, challenged string) {
	challengerEndpoint, ok := o.registry.Endpoint(challenger)
	if !ok {
		o.reply(conn, "Error: you are not logged in.")
		return
	}
	challengedEndpoint, ok := o.registry.Endpoint(challenged)
	if !ok {
		o.reply(conn, fmt.Sprintf("Match error: %s is offline", challenged))
		return
	}

	// Words are fetched before anything observable happens so a translation
	// outage fails the match while it is still cheap to fail.
	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	challenges, err := o.words.Batch(setupCtx, o.rules.Words)
	cancel()
	if err != nil {
		slog.Error("match setup failed", "challenger", challenger, "challenged", challenged, "err", err)
		o.reply(conn, "Match error: match setup failed.")
		return
	}

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{})
	if err != nil {
		slog.Error("match setup failed", "challenger", challenger, "challenged", challenged, "err", err)
		o.reply(conn, "Match error: match setup failed.")
		return
	}
	defer ln.Close()
	duelPort := ln.Addr().(*net.TCPAddr).Port

	m := newMatch(challenger, challenged, len(challenges))
	slog.Info("match invitation sent",
		"challenger", challenger,
		"challenged", challenged,
		"duel_port", duelPort)

	accepted, err := o.invite(challenger, challengedEndpoint, duelPort)
	if err != nil {
		if errors.Is(err, errInviteExpired) {
			m.state = StateInviteTimeout
			slog.Info("match invitation expired", "challenger", challenger, "challenged", challenged)
			o.reply(conn, fmt.Sprintf("Match error: invitation to %s timed out.", challenged))
			return
		}
		m.state = StateAborted
		slog.Error("match invitation failed", "challenger", challenger, "challenged", challenged, "err", err)
		o.reply(conn, "Match error: match setup failed.")
		return
	}
	if !accepted {
		m.state = StateRefused
		slog.Info("match invitation refused", "challenger", challenger, "challenged", challenged)
		o.reply(conn, fmt.Sprintf("%s refused your match invitation.", challenged))
		return
	}

	m.state = StateRendezvous
	o.reply(conn, fmt.Sprintf("%s accepted your match invitation./%d", challenged, duelPort))

	// The clock starts at acceptance. Players spend their own match time
	// getting to the rendezvous point.
	deadline := time.Now().Add(time.Duration(o.rules.Duration))
	o.rendezvous(m, ln, deadline, []net.IP{challengerEndpoint.IP, challengedEndpoint.IP})
	defer closeConns(m)

	m.state = StateDueling
	timedOut := o.duel(ctx, m, challenges, deadline)

	o.finish(m, challenges, timedOut)
}

// reply writes a single protocol line to the challenger's session socket.
func (o *Orchestrator) reply(conn net.Conn, line string) {
	if err := protocol.WriteLine(conn, line); err != nil {
		slog.Debug("match reply failed", "err", err)
	}
}

func closeConns(m *Match) {
	for _, dc := range m.conns {
		dc.conn.Close()
	}
}
