// Package client is the Word Quizzle client side: account registration over
// HTTP, the session line protocol, the UDP invitation listener and the duel
// connection. The REPL in cmd/wqclient is a thin shell around this package.
package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/udisondev/wordquizzle/internal/protocol"
)

var (
	// ErrNotLoggedIn means the operation needs an open session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrLoggedIn means a session is already open.
	ErrLoggedIn = errors.New("already logged in")
)

const loginOK = "Login successful."

// Client talks to one Word Quizzle server. Session operations serialize on
// an internal lock; the invitation listener runs on its own goroutine and
// only touches the pending table.
type Client struct {
	sessionAddr string
	regURL      string
	http        *retryablehttp.Client

	mu       sync.Mutex
	nickname string
	conn     net.Conn
	r        *bufio.Reader
	udp      *net.UDPConn

	invMu   sync.Mutex
	invites map[string]invite
}

// New returns a client for the server living on host, e.g. "127.0.0.1".
func New(host string, sessionPort, registrationPort int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		sessionAddr: net.JoinHostPort(host, strconv.Itoa(sessionPort)),
		regURL:      fmt.Sprintf("http://%s/register", net.JoinHostPort(host, strconv.Itoa(registrationPort))),
		http:        rc,
		invites:     make(map[string]invite),
	}
}

// Nickname returns the logged-in nickname, or "" between sessions.
func (c *Client) Nickname() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nickname
}

// LoggedIn reports whether a session is open.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

type registerPayload struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// Register creates an account through the registration door and returns the
// status line.
func (c *Client) Register(nickname, password string) (string, error) {
	body, err := json.Marshal(registerPayload{Nickname: nickname, Password: password})
	if err != nil {
		return "", fmt.Errorf("encoding registration: %w", err)
	}

	resp, err := c.http.Post(c.regURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("posting registration: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registration rejected: status %d", resp.StatusCode)
	}

	var decoded struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding registration reply: %w", err)
	}
	return decoded.Status, nil
}

// Login opens the session: it binds the invitation socket, dials the server
// and declares the socket's port in the login request. On any reply other
// than success everything is torn down again and the reply line goes back to
// the caller.
func (c *Client) Login(nickname, password string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return "", ErrLoggedIn
	}

	udp, err := net.ListenUDP("udp", nil)
	if err != nil {
		return "", fmt.Errorf("binding invitation socket: %w", err)
	}
	udpPort := udp.LocalAddr().(*net.UDPAddr).Port

	conn, err := net.Dial("tcp", c.sessionAddr)
	if err != nil {
		udp.Close()
		return "", fmt.Errorf("dialing %s: %w", c.sessionAddr, err)
	}
	r := bufio.NewReader(conn)

	frame := protocol.FormatRequest(protocol.OpLogin, nickname, password, strconv.Itoa(udpPort))
	if _, err := conn.Write(frame); err != nil {
		conn.Close()
		udp.Close()
		return "", fmt.Errorf("sending login: %w", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		udp.Close()
		return "", fmt.Errorf("reading login reply: %w", err)
	}

	reply := strings.TrimSuffix(line, "\n")
	if reply != loginOK {
		conn.Close()
		udp.Close()
		return reply, nil
	}

	c.nickname = nickname
	c.conn = conn
	c.r = r
	c.udp = udp
	go c.listenInvites(udp)
	return reply, nil
}

// Logout ends the session. Local resources are released whatever the server
// answered.
func (c *Client) Logout() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply, err := c.requestLocked(protocol.OpLogout)
	c.teardownLocked()
	return reply, err
}

// AddFriend asks the server to befriend the two users.
func (c *Client) AddFriend(friend string) (string, error) {
	return c.request(protocol.OpAddFriend, friend)
}

// FriendList returns the friend list line.
func (c *Client) FriendList() (string, error) {
	return c.request(protocol.OpFriendList)
}

// Score returns the caller's score line.
func (c *Client) Score() (string, error) {
	return c.request(protocol.OpScore)
}

// Scoreboard returns the scoreboard line.
func (c *Client) Scoreboard() (string, error) {
	return c.request(protocol.OpScoreboard)
}

// Match challenges friend and waits for the verdict. When the invitation is
// accepted the duel connection is dialed and returned; otherwise the reply
// line explains what happened and the Duel is nil.
func (c *Client) Match(friend string) (*Duel, string, error) {
	reply, err := c.request(protocol.OpMatch, friend)
	if err != nil {
		return nil, "", err
	}

	port, ok := acceptedPort(reply)
	if !ok {
		return nil, reply, nil
	}
	host, _, err := net.SplitHostPort(c.sessionAddr)
	if err != nil {
		return nil, "", fmt.Errorf("resolving duel host: %w", err)
	}
	d, err := c.dialDuel(host, port)
	if err != nil {
		return nil, "", err
	}
	return d, reply[:strings.LastIndex(reply, "/")], nil
}

// acceptedPort extracts the duel port from an acceptance reply.
func acceptedPort(reply string) (int, bool) {
	if !strings.Contains(reply, "accepted your match invitation") {
		return 0, false
	}
	i := strings.LastIndex(reply, "/")
	if i < 0 {
		return 0, false
	}
	port, err := strconv.Atoi(reply[i+1:])
	if err != nil {
		return 0, false
	}
	return port, true
}

func (c *Client) request(op protocol.Op, args ...string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestLocked(op, args...)
}

// requestLocked sends one command and reads the one-line reply. A transport
// failure means the session is gone, so it tears everything down.
func (c *Client) requestLocked(op protocol.Op, args ...string) (string, error) {
	if c.conn == nil {
		return "", ErrNotLoggedIn
	}
	if _, err := c.conn.Write(protocol.FormatRequest(op, args...)); err != nil {
		c.teardownLocked()
		return "", fmt.Errorf("sending %s: %w", op, err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.teardownLocked()
		return "", fmt.Errorf("reading %s reply: %w", op, err)
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// teardownLocked drops the session and the invitation state. Callers hold mu.
func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.r = nil
	}
	if c.udp != nil {
		c.udp.Close()
		c.udp = nil
	}
	c.nickname = ""

	c.invMu.Lock()
	clear(c.invites)
	c.invMu.Unlock()
}

func (c *Client) dialDuel(host string, port int) (*Duel, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dialing duel endpoint: %w", err)
	}
	c.mu.Lock()
	nickname := c.nickname
	c.mu.Unlock()
	return &Duel{nickname: nickname, conn: conn, r: bufio.NewReader(conn)}, nil
}
