// wqclient is the interactive Word Quizzle terminal client.
//
// Usage:
//
//	go run ./cmd/wqclient -host play.example.com
//	go run ./cmd/wqclient -port 8888 -registration-port 5678
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/udisondev/wordquizzle/internal/client"
	"github.com/udisondev/wordquizzle/internal/protocol"
)

func main() {
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 8888, "session server TCP port")
	regPort := flag.Int("registration-port", 5678, "registration server HTTP port")
	flag.Parse()

	c := &cli{
		client: client.New(*host, *port, *regPort),
		in:     bufio.NewScanner(os.Stdin),
	}
	c.run()
}

// cli owns the terminal loop. A single scanner reads both commands and duel
// translations, so a duel never races the prompt for stdin.
type cli struct {
	client *client.Client
	in     *bufio.Scanner
}

func (c *cli) run() {
	fmt.Println("Word Quizzle client. Type 'help' for the command list.")
	for {
		fmt.Print("> ")
		if !c.in.Scan() {
			return
		}
		fields := strings.Fields(c.in.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return
		}
		c.dispatch(fields[0], fields[1:])
	}
}

func (c *cli) dispatch(cmd string, args []string) {
	var reply string
	var err error

	switch cmd {
	case "help":
		printHelp()
		return
	case "registration":
		if len(args) != 2 {
			fmt.Println("usage: registration <nickname> <password>")
			return
		}
		reply, err = c.client.Register(args[0], args[1])
	case "login":
		if len(args) != 2 {
			fmt.Println("usage: login <nickname> <password>")
			return
		}
		reply, err = c.client.Login(args[0], args[1])
	case "logout":
		reply, err = c.client.Logout()
	case "add_friend":
		if len(args) != 1 {
			fmt.Println("usage: add_friend <nickname>")
			return
		}
		reply, err = c.client.AddFriend(args[0])
	case "friend_list":
		reply, err = c.client.FriendList()
	case "score":
		reply, err = c.client.Score()
	case "scoreboard":
		reply, err = c.client.Scoreboard()
	case "match":
		if len(args) != 1 {
			fmt.Println("usage: match <nickname>")
			return
		}
		c.challenge(args[0])
		return
	case "show_matches":
		c.showMatches()
		return
	case "accept_match":
		if len(args) != 1 {
			fmt.Println("usage: accept_match <nickname>")
			return
		}
		c.acceptMatch(args[0])
		return
	default:
		fmt.Println("wrong usage, type 'help' for the command list")
		return
	}

	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(reply)
}

// challenge sends the match request and, when the friend accepts, plays the
// duel on the spot. The session stays blocked for its whole duration, which
// is exactly what the server expects from the challenger.
func (c *cli) challenge(friend string) {
	duel, reply, err := c.client.Match(friend)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(reply)
	if duel != nil {
		c.play(duel)
	}
}

func (c *cli) showMatches() {
	if !c.client.LoggedIn() {
		fmt.Println("You're not logged in")
		return
	}
	pending := c.client.Pending()
	if len(pending) == 0 {
		fmt.Println("No pending challenges")
		return
	}
	fmt.Println("You have received match requests from the following friends:")
	for _, challenger := range pending {
		fmt.Println(challenger)
	}
}

func (c *cli) acceptMatch(friend string) {
	if !c.client.LoggedIn() {
		fmt.Println("You're not logged in")
		return
	}
	pending := c.client.Pending()
	if len(pending) == 0 {
		fmt.Println("No pending challenges")
		return
	}
	if !slices.Contains(pending, friend) {
		fmt.Printf("User %s didn't challenge you\n", friend)
		return
	}

	duel, err := c.client.Accept(friend)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	c.play(duel)
}

// play runs the duel rounds: print the word, read the translation, repeat
// until the result line. The last answer blocks until the opponent finishes
// or the match clock runs out.
func (c *cli) play(d *client.Duel) {
	defer d.Close()

	word, err := d.Start()
	if err != nil {
		fmt.Println("duel error:", err)
		return
	}

	fmt.Println("Translate all the following words:")
	for {
		fmt.Println("Server:", word)
		fmt.Print("Translation: ")
		if !c.in.Scan() {
			return
		}

		next, end, err := d.Answer(strings.TrimSpace(c.in.Text()))
		if err != nil {
			fmt.Println("duel error:", err)
			return
		}
		if end != nil {
			printEnd(end)
			return
		}
		word = next
	}
}

func printEnd(end *protocol.End) {
	if end.TimedOut {
		fmt.Printf("Time out: you have scored: %d points. You %s.\n", end.Score, end.Verdict)
		return
	}
	fmt.Printf("You have scored: %d points. You %s.\n", end.Score, end.Verdict)
}

func printHelp() {
	fmt.Print(`Commands:
  registration <nickname> <password>  register with the remote service
  login <nickname> <password>         log in
  logout                              log out
  add_friend <nickname>               add a friend
  friend_list                         show your friends
  score                               show your score
  scoreboard                          show the scoreboard of you and your friends
  match <nickname>                    challenge a friend to a duel
  show_matches                        show pending match invitations
  accept_match <nickname>             accept a friend's invitation
  exit                                quit the client
`)
}
