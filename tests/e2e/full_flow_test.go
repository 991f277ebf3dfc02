package e2e

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/udisondev/wordquizzle/internal/client"
	"github.com/udisondev/wordquizzle/internal/config"
	"github.com/udisondev/wordquizzle/internal/protocol"
	"github.com/udisondev/wordquizzle/internal/registration"
	"github.com/udisondev/wordquizzle/internal/server"
	"github.com/udisondev/wordquizzle/internal/store"
	"github.com/udisondev/wordquizzle/internal/testutil"
)

// FullFlowSuite тестирует полный end-to-end flow через internal/client:
// HTTP регистрация → login → дружба → UDP приглашение → TCP дуэль → счёт.
// Оба сервера поднимаются in-process, словарь фиксированный, сеть не нужна.
// Каждый сценарий использует собственные ники, поэтому один стек на suite.
type FullFlowSuite struct {
	suite.Suite

	store       *store.Store
	sessionPort int
	regPort     int
}

// SetupSuite поднимает session server и registration server на случайных портах.
func (s *FullFlowSuite) SetupSuite() {
	st, err := store.Open(filepath.Join(s.T().TempDir(), "users.json"))
	s.Require().NoError(err)
	s.store = st

	cfg := config.DefaultServer()
	cfg.Match = config.MatchConfig{
		Duration:      config.Duration(5 * time.Second),
		InviteTimeout: config.Duration(time.Second),
		Words:         3,
	}

	ctx, _ := testutil.ContextWithCancel(s.T())

	sessions := server.NewServer(cfg, st, testutil.CannedWords{Challenges: testutil.Challenges()})
	ln, addr := testutil.ListenTCP(s.T())
	go sessions.Serve(ctx, ln)
	s.Require().NoError(testutil.WaitForTCPReady(addr, 5*time.Second))
	s.sessionPort = s.portOf(addr)

	door := registration.New(st)
	go door.Run(ctx, "127.0.0.1:0")
	testutil.WaitForCondition(s.T(), func() bool { return door.Addr() != nil }, 5*time.Second)
	regAddr := door.Addr().String()
	s.Require().NoError(testutil.WaitForTCPReady(regAddr, 5*time.Second))
	s.regPort = s.portOf(regAddr)
}

func (s *FullFlowSuite) portOf(addr string) int {
	s.T().Helper()
	_, portStr, err := net.SplitHostPort(addr)
	s.Require().NoError(err)
	port, err := strconv.Atoi(portStr)
	s.Require().NoError(err)
	return port
}

func (s *FullFlowSuite) newClient() *client.Client {
	return client.New("127.0.0.1", s.sessionPort, s.regPort)
}

func (s *FullFlowSuite) register(c *client.Client, nickname, password string) {
	s.T().Helper()
	status, err := c.Register(nickname, password)
	s.Require().NoError(err)
	s.Require().Equal(registration.StatusSucceeded, status)
}

// signUp регистрирует и логинит нового пользователя, logout на cleanup.
func (s *FullFlowSuite) signUp(nickname string) *client.Client {
	s.T().Helper()
	c := s.newClient()
	s.register(c, nickname, "secret")
	reply, err := c.Login(nickname, "secret")
	s.Require().NoError(err)
	s.Require().Equal("Login successful.", reply)
	s.T().Cleanup(func() { _, _ = c.Logout() })
	return c
}

func (s *FullFlowSuite) befriend(c *client.Client, friend string) {
	s.T().Helper()
	reply, err := c.AddFriend(friend)
	s.Require().NoError(err)
	s.Require().Equal(fmt.Sprintf("%s is now your friend.", friend), reply)
}

type matchResult struct {
	duel  *client.Duel
	reply string
	err   error
}

// challengeAsync отправляет вызов в горутине: Match блокирует сессию
// вызывающего до конца дуэли, ровно как настоящий клиент.
func (s *FullFlowSuite) challengeAsync(c *client.Client, friend string) <-chan matchResult {
	ch := make(chan matchResult, 1)
	go func() {
		duel, reply, err := c.Match(friend)
		ch <- matchResult{duel: duel, reply: reply, err: err}
	}()
	return ch
}

func (s *FullFlowSuite) awaitMatch(ch <-chan matchResult) matchResult {
	s.T().Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(10 * time.Second):
		s.T().Fatal("match request did not return")
		return matchResult{}
	}
}

// answerWord отправляет перевод и требует следующее слово, не конец.
func (s *FullFlowSuite) answerWord(d *client.Duel, text, wantNext string) {
	s.T().Helper()
	next, end, err := d.Answer(text)
	s.Require().NoError(err)
	s.Require().Nil(end)
	s.Require().Equal(wantNext, next)
}

// answerLast отправляет последний перевод и ждёт итоговую строку.
func (s *FullFlowSuite) answerLast(d *client.Duel, text string) protocol.End {
	s.T().Helper()
	next, end, err := d.Answer(text)
	s.Require().NoError(err)
	s.Require().NotNil(end, "expected end line, got next word %q", next)
	return *end
}

func (s *FullFlowSuite) TestRegistration() {
	c := s.newClient()

	status, err := c.Register("s1_rick", "secret")
	s.Require().NoError(err)
	s.Equal(registration.StatusSucceeded, status)

	status, err = c.Register("s1_rick", "other")
	s.Require().NoError(err)
	s.Equal(registration.StatusNicknameTaken, status)

	status, err = c.Register("bad/name", "secret")
	s.Require().NoError(err)
	s.Equal(registration.StatusBadNickname, status)

	status, err = c.Register("s1_morty", "")
	s.Require().NoError(err)
	s.Equal(registration.StatusBadPassword, status)
}

func (s *FullFlowSuite) TestAccountSession() {
	c := s.newClient()
	s.register(c, "s2_alice", "secret")

	reply, err := c.Login("s2_alice", "wrong")
	s.Require().NoError(err)
	s.Equal("Login error: wrong password.", reply)

	reply, err = c.Login("s2_alice", "secret")
	s.Require().NoError(err)
	s.Equal("Login successful.", reply)

	reply, err = c.Score()
	s.Require().NoError(err)
	s.Equal("s2_alice, your score is: 0", reply)

	// Ник занят, пока первая сессия жива
	c2 := s.newClient()
	reply, err = c2.Login("s2_alice", "secret")
	s.Require().NoError(err)
	s.Equal("Login error: s2_alice is already logged in.", reply)

	reply, err = c.Logout()
	s.Require().NoError(err)
	s.Equal("Logout successful", reply)

	reply, err = c2.Login("s2_alice", "secret")
	s.Require().NoError(err)
	s.Equal("Login successful.", reply)
	_, err = c2.Logout()
	s.Require().NoError(err)
}

func (s *FullFlowSuite) TestFriendship() {
	alice := s.signUp("s3_alice")
	bob := s.signUp("s3_bob")

	s.befriend(alice, "s3_bob")

	reply, err := alice.AddFriend("s3_bob")
	s.Require().NoError(err)
	s.Equal("Add friend error: you and s3_bob are already friends.", reply)

	// Дружба симметрична
	reply, err = bob.FriendList()
	s.Require().NoError(err)
	s.Equal("Your friends are: s3_alice ", reply)

	reply, err = alice.Scoreboard()
	s.Require().NoError(err)
	s.Equal("s3_alice 0 s3_bob 0 ", reply)
}

func (s *FullFlowSuite) TestFullDuel() {
	alice := s.signUp("s4_alice")
	bob := s.signUp("s4_bob")
	s.befriend(alice, "s4_bob")

	resCh := s.challengeAsync(alice, "s4_bob")

	testutil.WaitForCondition(s.T(), func() bool {
		return len(bob.Pending()) > 0
	}, 5*time.Second)
	s.Equal([]string{"s4_alice"}, bob.Pending())

	bobDuel, err := bob.Accept("s4_alice")
	s.Require().NoError(err)
	defer bobDuel.Close()

	res := s.awaitMatch(resCh)
	s.Require().NoError(res.err)
	s.Require().NotNil(res.duel)
	defer res.duel.Close()
	s.Equal("s4_bob accepted your match invitation.", res.reply)
	aliceDuel := res.duel

	word, err := aliceDuel.Start()
	s.Require().NoError(err)
	s.Equal("cane", word)
	word, err = bobDuel.Start()
	s.Require().NoError(err)
	s.Equal("cane", word)

	s.answerWord(aliceDuel, "dog", "gatto")
	s.answerWord(aliceDuel, "cat", "pane")
	s.answerWord(bobDuel, "dog", "gatto")
	s.answerWord(bobDuel, "", "pane")

	// Последний ответ блокирует до конца дуэли, поэтому ответ боба уходит
	// из горутины, а ответ алисы из теста
	bobEndCh := make(chan *protocol.End, 1)
	go func() {
		_, end, err := bobDuel.Answer("fish")
		if err != nil {
			bobEndCh <- nil
			return
		}
		bobEndCh <- end
	}()

	aliceEnd := s.answerLast(aliceDuel, "bread")
	s.Equal(9, aliceEnd.Score)
	s.Equal(protocol.VerdictWon, aliceEnd.Verdict)
	s.False(aliceEnd.TimedOut)

	var bobEnd *protocol.End
	select {
	case bobEnd = <-bobEndCh:
	case <-time.After(10 * time.Second):
		s.T().Fatal("no end line for the challenged player")
	}
	s.Require().NotNil(bobEnd)
	s.Equal(1, bobEnd.Score)
	s.Equal(protocol.VerdictLost, bobEnd.Verdict)

	// Очки записаны в стор и видны через протокол
	u, err := s.store.Lookup("s4_alice")
	s.Require().NoError(err)
	s.Equal(9, u.Score)

	reply, err := alice.Score()
	s.Require().NoError(err)
	s.Equal("s4_alice, your score is: 9", reply)
	reply, err = alice.Scoreboard()
	s.Require().NoError(err)
	s.Equal("s4_alice 9 s4_bob 1 ", reply)
}

func (s *FullFlowSuite) TestInviteTimeout() {
	carol := s.signUp("s5_carol")
	dave := s.signUp("s5_dave")
	s.befriend(carol, "s5_dave")

	resCh := s.challengeAsync(carol, "s5_dave")

	// Приглашение дошло, но dave его игнорирует
	testutil.WaitForCondition(s.T(), func() bool {
		return len(dave.Pending()) > 0
	}, 5*time.Second)

	res := s.awaitMatch(resCh)
	s.Require().NoError(res.err)
	s.Nil(res.duel)
	s.Equal("Match error: invitation to s5_dave timed out.", res.reply)

	// TIMEOUT датаграмма выкидывает приглашение из pending таблицы
	testutil.WaitForCondition(s.T(), func() bool {
		return len(dave.Pending()) == 0
	}, 5*time.Second)
}

func (s *FullFlowSuite) TestCrashMidDuel() {
	erin := s.signUp("s6_erin")
	frank := s.signUp("s6_frank")
	s.befriend(erin, "s6_frank")

	resCh := s.challengeAsync(erin, "s6_frank")
	testutil.WaitForCondition(s.T(), func() bool {
		return len(frank.Pending()) > 0
	}, 5*time.Second)

	frankDuel, err := frank.Accept("s6_erin")
	s.Require().NoError(err)

	res := s.awaitMatch(resCh)
	s.Require().NoError(res.err)
	s.Require().NotNil(res.duel)
	defer res.duel.Close()
	erinDuel := res.duel

	_, err = erinDuel.Start()
	s.Require().NoError(err)
	_, err = frankDuel.Start()
	s.Require().NoError(err)

	// Frank отвечает одно слово и падает, банк из двух очков остаётся
	s.answerWord(frankDuel, "dog", "gatto")
	s.Require().NoError(frankDuel.Close())

	s.answerWord(erinDuel, "dog", "gatto")
	s.answerWord(erinDuel, "cat", "pane")
	erinEnd := s.answerLast(erinDuel, "bread")
	s.Equal(9, erinEnd.Score)
	s.Equal(protocol.VerdictWon, erinEnd.Verdict)

	// Сессия фрэнка переживает смерть дуэльного соединения
	reply, err := frank.Score()
	s.Require().NoError(err)
	s.Equal("s6_frank, your score is: 2", reply)
}

func TestFullFlowSuite(t *testing.T) {
	suite.Run(t, new(FullFlowSuite))
}
