package protocol

import (
	"errors"
	"testing"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name string
		data string
		op   Op
		args []string
	}{
		{"login", "0 alice secret 40001", OpLogin, []string{"alice", "secret", "40001"}},
		{"logout", "1", OpLogout, nil},
		{"add_friend", "2 bob", OpAddFriend, []string{"bob"}},
		{"friend_list", "3", OpFriendList, nil},
		{"score", "4", OpScore, nil},
		{"scoreboard", "5", OpScoreboard, nil},
		{"match", "6 bob", OpMatch, []string{"bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseRequest(%q) = %v; want nil", tt.data, err)
			}
			if req.Op != tt.op {
				t.Errorf("Op = %v; want %v", req.Op, tt.op)
			}
			if len(req.Args) != len(tt.args) {
				t.Fatalf("Args = %v; want %v", req.Args, tt.args)
			}
			for i := range tt.args {
				if req.Args[i] != tt.args[i] {
					t.Errorf("Args[%d] = %q; want %q", i, req.Args[i], tt.args[i])
				}
			}
		})
	}
}

func TestParseRequest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"spaces only", "   "},
		{"not a number", "login alice"},
		{"unknown opcode", "9 alice"},
		{"negative opcode", "-1"},
		{"login missing args", "0 alice secret"},
		{"logout with args", "1 alice"},
		{"match without friend", "6"},
		{"match extra args", "6 bob carol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.data))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseRequest(%q) = %v; want ErrMalformed", tt.data, err)
			}
		})
	}
}

func TestFormatRequest(t *testing.T) {
	got := string(FormatRequest(OpLogin, "alice", "secret", "40001"))
	want := "0 alice secret 40001"
	if got != want {
		t.Errorf("FormatRequest(login) = %q; want %q", got, want)
	}

	// Запрос уходит без терминатора
	if got := string(FormatRequest(OpLogout)); got != "1" {
		t.Errorf("FormatRequest(logout) = %q; want %q", got, "1")
	}
}

func TestInviteRoundTrip(t *testing.T) {
	data := FormatInvite("alice", 45123)
	if string(data) != "alice/45123" {
		t.Fatalf("FormatInvite = %q; want alice/45123", data)
	}

	challenger, port, err := ParseInvite(data)
	if err != nil {
		t.Fatal(err)
	}
	if challenger != "alice" || port != 45123 {
		t.Errorf("ParseInvite = %q, %d; want alice, 45123", challenger, port)
	}

	if _, _, err := ParseInvite([]byte("no separator")); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseInvite(garbage) = %v; want ErrMalformed", err)
	}
}

func TestParseInviteTimeout(t *testing.T) {
	challenger, ok := ParseInviteTimeout(FormatInviteTimeout("alice"))
	if !ok || challenger != "alice" {
		t.Errorf("ParseInviteTimeout = %q, %v; want alice, true", challenger, ok)
	}

	if _, ok := ParseInviteTimeout([]byte("alice/45123")); ok {
		t.Error("ParseInviteTimeout(invite) = true; want false")
	}
}

func TestAccepted(t *testing.T) {
	if !Accepted([]byte("Y")) {
		t.Error("Accepted(Y) = false; want true")
	}
	// Всё, что не Y, трактуется как отказ
	for _, reply := range []string{"N", "y", "", "YES", "garbage"} {
		if Accepted([]byte(reply)) {
			t.Errorf("Accepted(%q) = true; want false", reply)
		}
	}
}

func TestParseDuelPayload(t *testing.T) {
	text, nick, err := ParseDuelPayload(FormatDuelPayload(StartText, "alice"))
	if err != nil {
		t.Fatal(err)
	}
	if text != StartText || nick != "alice" {
		t.Errorf("ParseDuelPayload(START) = %q, %q; want START, alice", text, nick)
	}

	// Ответ со слэшем не должен ломать атрибуцию
	text, nick, err = ParseDuelPayload([]byte("dog/cat/bob"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "dog/cat" || nick != "bob" {
		t.Errorf("ParseDuelPayload = %q, %q; want dog/cat, bob", text, nick)
	}

	if _, _, err := ParseDuelPayload([]byte("nosep")); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseDuelPayload(nosep) = %v; want ErrMalformed", err)
	}
}

func TestFormatEnd(t *testing.T) {
	tests := []struct {
		score    int
		verdict  Verdict
		timedOut bool
		want     string
	}{
		{7, VerdictWon, false, "END/You have scored: 7 points. You won."},
		{1, VerdictLost, false, "END/You have scored: 1 points. You lost."},
		{4, VerdictDrew, false, "END/You have scored: 4 points. You drew."},
		{-2, VerdictLost, true, "END/Time out: you have scored: -2 points. You lost."},
	}

	for _, tt := range tests {
		if got := FormatEnd(tt.score, tt.verdict, tt.timedOut); got != tt.want {
			t.Errorf("FormatEnd(%d, %s, %v) = %q; want %q", tt.score, tt.verdict, tt.timedOut, got, tt.want)
		}
	}
}

func TestParseEnd(t *testing.T) {
	end, err := ParseEnd("END/You have scored: 7 points. You won.")
	if err != nil {
		t.Fatal(err)
	}
	if end.Score != 7 || end.Verdict != VerdictWon || end.TimedOut {
		t.Errorf("ParseEnd = %+v; want score 7, won, no timeout", end)
	}

	end, err = ParseEnd("END/Time out: you have scored: -2 points. You lost.")
	if err != nil {
		t.Fatal(err)
	}
	if end.Score != -2 || end.Verdict != VerdictLost || !end.TimedOut {
		t.Errorf("ParseEnd = %+v; want score -2, lost, timeout", end)
	}

	if _, err := ParseEnd("cane"); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseEnd(word) = %v; want ErrMalformed", err)
	}
	if !IsEnd("END/You have scored: 0 points. You drew.") {
		t.Error("IsEnd(end line) = false; want true")
	}
	if IsEnd("cane") {
		t.Error("IsEnd(word) = true; want false")
	}
}
