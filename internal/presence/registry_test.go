package presence

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
)

func endpoint(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func TestRegistry_BindUnbind(t *testing.T) {
	r := NewRegistry()
	conn := uuid.Must(uuid.NewV4())

	if err := r.Bind(conn, "alice", endpoint(40001)); err != nil {
		t.Fatalf("Bind(alice) = %v; want nil", err)
	}

	if !r.Online("alice") {
		t.Error("Online(alice) = false after Bind; want true")
	}
	if nick, ok := r.Nickname(conn); !ok || nick != "alice" {
		t.Errorf("Nickname(conn) = %q, %v; want alice, true", nick, ok)
	}
	if ep, ok := r.Endpoint("alice"); !ok || ep.Port != 40001 {
		t.Errorf("Endpoint(alice) = %v, %v; want port 40001, true", ep, ok)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d; want 1", r.Count())
	}

	nick, ok := r.Unbind(conn)
	if !ok || nick != "alice" {
		t.Errorf("Unbind(conn) = %q, %v; want alice, true", nick, ok)
	}
	if r.Online("alice") {
		t.Error("Online(alice) = true after Unbind; want false")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after Unbind; want 0", r.Count())
	}
}

func TestRegistry_Bind_NicknameOnline(t *testing.T) {
	r := NewRegistry()
	first := uuid.Must(uuid.NewV4())
	second := uuid.Must(uuid.NewV4())

	if err := r.Bind(first, "alice", endpoint(40001)); err != nil {
		t.Fatal(err)
	}

	err := r.Bind(second, "alice", endpoint(40002))
	if !errors.Is(err, ErrNicknameOnline) {
		t.Fatalf("second Bind(alice) = %v; want ErrNicknameOnline", err)
	}

	// Отказ не должен трогать ни один индекс
	if _, ok := r.Nickname(second); ok {
		t.Error("failed Bind left the connection in the registry")
	}
	if ep, _ := r.Endpoint("alice"); ep.Port != 40001 {
		t.Errorf("Endpoint(alice).Port = %d; want original 40001", ep.Port)
	}
}

func TestRegistry_Bind_ConnBound(t *testing.T) {
	r := NewRegistry()
	conn := uuid.Must(uuid.NewV4())

	if err := r.Bind(conn, "alice", endpoint(40001)); err != nil {
		t.Fatal(err)
	}

	err := r.Bind(conn, "bob", endpoint(40002))
	if !errors.Is(err, ErrConnBound) {
		t.Fatalf("Bind(bob) on bound conn = %v; want ErrConnBound", err)
	}
	if r.Online("bob") {
		t.Error("failed Bind left bob online")
	}
}

func TestRegistry_Unbind_NeverBound(t *testing.T) {
	r := NewRegistry()

	nick, ok := r.Unbind(uuid.Must(uuid.NewV4()))
	if ok || nick != "" {
		t.Errorf("Unbind(unknown) = %q, %v; want \"\", false", nick, ok)
	}
}

// После любой последовательности bind/unbind оба индекса описывают
// одно и то же множество сессий.
func TestRegistry_RandomOps_IndexesAgree(t *testing.T) {
	r := NewRegistry()
	rng := rand.New(rand.NewPCG(3, 11))

	conns := make([]uuid.UUID, 10)
	for i := range conns {
		conns[i] = uuid.Must(uuid.NewV4())
	}

	for step := range 500 {
		i := rng.IntN(len(conns))
		nick := fmt.Sprintf("user%d", rng.IntN(6))
		if rng.IntN(2) == 0 {
			err := r.Bind(conns[i], nick, endpoint(40000+i))
			if err != nil && !errors.Is(err, ErrNicknameOnline) && !errors.Is(err, ErrConnBound) {
				t.Fatalf("step %d: Bind = %v", step, err)
			}
		} else {
			r.Unbind(conns[i])
		}

		online := 0
		for _, conn := range conns {
			nick, ok := r.Nickname(conn)
			if !ok {
				continue
			}
			online++
			if !r.Online(nick) {
				t.Fatalf("step %d: conn sees %s but nickname index does not", step, nick)
			}
			if _, ok := r.Endpoint(nick); !ok {
				t.Fatalf("step %d: %s online without an endpoint", step, nick)
			}
		}
		if got := r.Count(); got != online {
			t.Fatalf("step %d: Count() = %d; want %d", step, got, online)
		}
	}
}

func TestRegistry_ConcurrentBind_SingleWinner(t *testing.T) {
	r := NewRegistry()

	const n = 16
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		conn := uuid.Must(uuid.NewV4())
		wg.Go(func() {
			errs[i] = r.Bind(conn, "alice", endpoint(40000+i))
		})
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("concurrent Bind winners = %d; want 1", winners)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d; want 1", r.Count())
	}
}
