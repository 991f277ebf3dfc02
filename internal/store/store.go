package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Store errors returned to handlers for translation into protocol replies.
var (
	ErrNicknameTaken  = errors.New("nickname already taken")
	ErrUnknownUser    = errors.New("unknown user")
	ErrWrongPassword  = errors.New("wrong password")
	ErrSelfFriendship = errors.New("cannot befriend yourself")
	ErrAlreadyFriends = errors.New("already friends")
)

// User is the persistent record of a registered player.
// Friends is kept sorted for stable listing.
type User struct {
	Nickname string
	PwdHash  string
	Score    int
	Friends  []string
}

// Entry is one scoreboard row.
type Entry struct {
	Nickname string
	Score    int
}

// record is the on-disk shape of a user; the nickname is the map key.
type record struct {
	Score   int      `json:"score"`
	PwdHash string   `json:"pwdHash"`
	Friends []string `json:"friends"`
}

// Store keeps every registered user in memory and mirrors each mutation
// to a single JSON file.
//
// Persistence policy: the file write happens inside the mutator's critical
// section, but a write failure does not fail the mutation. The in-memory
// state stays authoritative and the error is logged.
type Store struct {
	path string

	mu    sync.RWMutex
	users map[string]*User
}

// Open loads the user file at path, or starts empty when it doesn't exist.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		users: make(map[string]*User),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading store %s: %w", path, err)
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing store %s: %w", path, err)
	}

	for nick, rec := range records {
		friends := slices.Clone(rec.Friends)
		slices.Sort(friends)
		s.users[nick] = &User{
			Nickname: nick,
			PwdHash:  rec.PwdHash,
			Score:    rec.Score,
			Friends:  friends,
		}
	}

	return s, nil
}

// Register creates a new user with a bcrypt fingerprint of password.
// Returns ErrNicknameTaken if the nickname exists.
// Thread-safe: acquires write lock.
func (s *Store) Register(nickname, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[nickname]; ok {
		return ErrNicknameTaken
	}

	s.users[nickname] = &User{
		Nickname: nickname,
		PwdHash:  string(hash),
	}
	s.persist()

	return nil
}

// Lookup returns a snapshot of the user. The Friends slice is a copy.
// Thread-safe: acquires read lock.
func (s *Store) Lookup(nickname string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[nickname]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUnknownUser, nickname)
	}

	out := *u
	out.Friends = slices.Clone(u.Friends)
	return out, nil
}

// Verify checks password against the stored fingerprint.
// Thread-safe: acquires read lock.
func (s *Store) Verify(nickname, password string) error {
	s.mu.RLock()
	u, ok := s.users[nickname]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, nickname)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PwdHash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// AddFriendship links two users symmetrically: after it returns, each lists
// the other. Both insertions and the file write happen in one critical
// section, so no reader can observe a one-sided friendship.
// Thread-safe: acquires write lock.
func (s *Store) AddFriendship(caller, friend string) error {
	if caller == friend {
		return ErrSelfFriendship
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.users[caller]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, caller)
	}
	b, ok := s.users[friend]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, friend)
	}

	if slices.Contains(a.Friends, friend) {
		return ErrAlreadyFriends
	}

	a.Friends = insertSorted(a.Friends, friend)
	b.Friends = insertSorted(b.Friends, caller)
	s.persist()

	return nil
}

// AdjustScore adds delta to the user's score. Negative totals are allowed.
// Thread-safe: acquires write lock.
func (s *Store) AdjustScore(nickname string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[nickname]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, nickname)
	}

	u.Score += delta
	s.persist()

	return nil
}

// Scoreboard returns the caller and all of the caller's friends ordered by
// score descending. Ties keep insertion order: the caller first, then
// friends alphabetically.
// Thread-safe: acquires read lock.
func (s *Store) Scoreboard(nickname string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[nickname]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, nickname)
	}

	board := make([]Entry, 0, len(u.Friends)+1)
	board = append(board, Entry{Nickname: u.Nickname, Score: u.Score})
	for _, f := range u.Friends {
		fu, ok := s.users[f]
		if !ok {
			continue
		}
		board = append(board, Entry{Nickname: fu.Nickname, Score: fu.Score})
	}

	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})

	return board, nil
}

// Len returns the number of registered users.
// Thread-safe: acquires read lock.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// persist rewrites the backing file atomically: marshal everything, write a
// temp file, fsync, rename over the old one. Callers hold the write lock.
func (s *Store) persist() {
	records := make(map[string]record, len(s.users))
	for nick, u := range s.users {
		records[nick] = record{
			Score:   u.Score,
			PwdHash: u.PwdHash,
			Friends: u.Friends,
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		slog.Error("store marshal failed", "err", err)
		return
	}

	if err := s.writeFile(data); err != nil {
		slog.Error("store persist failed", "path", s.path, "err", err)
	}
}

func (s *Store) writeFile(data []byte) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating store dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing store file: %w", err)
	}

	return nil
}

func insertSorted(list []string, v string) []string {
	i, _ := slices.BinarySearch(list, v)
	return slices.Insert(list, i, v)
}
