package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/udisondev/wordquizzle/internal/store"
	"github.com/udisondev/wordquizzle/internal/words"
)

// TestPassword — пароль всех пользователей, созданных через OpenStore.
const TestPassword = "pw"

// OpenStore создаёт стор во временном каталоге и регистрирует перечисленных
// пользователей с паролем TestPassword.
func OpenStore(t testing.TB, nicknames ...string) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	for _, nick := range nicknames {
		if err := st.Register(nick, TestPassword); err != nil {
			t.Fatalf("registering %s: %v", nick, err)
		}
	}
	return st
}

// CannedWords реализует words.Provider фиксированным списком. Err, если
// задан, возвращается вместо слов.
type CannedWords struct {
	Challenges []words.Challenge
	Err        error
}

// Batch implements words.Provider.
func (c CannedWords) Batch(_ context.Context, n int) ([]words.Challenge, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if n > len(c.Challenges) {
		return nil, fmt.Errorf("canned dictionary has %d words, %d requested", len(c.Challenges), n)
	}
	return c.Challenges[:n], nil
}

// Challenges возвращает стандартный набор из трёх слов для дуэльных тестов.
func Challenges() []words.Challenge {
	return []words.Challenge{
		{Word: "cane", Accepted: []string{"dog", "hound"}},
		{Word: "gatto", Accepted: []string{"cat"}},
		{Word: "pane", Accepted: []string{"bread"}},
	}
}
