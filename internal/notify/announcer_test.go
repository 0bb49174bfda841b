package notify

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeIRCd accepts one client, registers it and records what it sends.
func fakeIRCd(t *testing.T, welcome bool) (string, <-chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var lines []string
		defer func() { got <- lines }()

		nick, sawUser := "", false
		reply := func(format string, args ...interface{}) {
			fmt.Fprintf(conn, format+"\r\n", args...)
		}

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := scanner.Text()
			lines = append(lines, line)
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "CAP":
				if len(fields) > 1 && fields[1] == "LS" {
					reply(":srv CAP * LS :")
				}
			case "NICK":
				nick = fields[1]
			case "USER":
				sawUser = true
			case "JOIN":
				reply(":%s!u@h JOIN %s", nick, fields[1])
			case "QUIT":
				return
			}
			if welcome && nick != "" && sawUser {
				reply(":srv 001 %s :Welcome", nick)
				welcome = false
			}
		}
	}()
	return ln.Addr().String(), got
}

func TestAnnounce(t *testing.T) {
	addr, got := fakeIRCd(t, true)
	a := New(Options{Server: addr, Channel: "#evals", Password: "pw", ConnectTimeout: 5 * time.Second})
	require.True(t, a.Enabled())

	err := a.Announce(context.Background(), []string{"Submission Successful!", "", "User: ada", "Overall Score: 50% (1/2 correct)"})
	require.NoError(t, err)

	var lines []string
	select {
	case lines = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not finish")
	}

	require.Contains(t, lines, "NICK evalbot")
	require.Contains(t, lines, "PRIVMSG NickServ :IDENTIFY pw")
	require.Contains(t, lines, "JOIN #evals")

	var msgs []string
	for _, l := range lines {
		if strings.HasPrefix(l, "PRIVMSG #evals ") {
			msgs = append(msgs, l)
		}
	}
	require.Len(t, msgs, 3)
	require.Equal(t, "PRIVMSG #evals :Submission Successful!", msgs[0])
	require.Equal(t, "PRIVMSG #evals :Overall Score: 50% (1/2 correct)", msgs[2])
	require.True(t, strings.HasPrefix(lines[len(lines)-1], "QUIT"))
}

func TestAnnounceTimesOutWithoutWelcome(t *testing.T) {
	addr, _ := fakeIRCd(t, false)
	a := New(Options{Server: addr, Channel: "#evals", ConnectTimeout: 200 * time.Millisecond})

	err := a.Announce(context.Background(), []string{"hello"})
	require.ErrorContains(t, err, "waiting for welcome")
}

func TestAnnounceConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	a := New(Options{Server: addr, Channel: "#evals", ConnectTimeout: time.Second})
	require.ErrorContains(t, a.Announce(context.Background(), []string{"x"}), "connect")

	// Notify only logs.
	a.Notify(context.Background(), "x")
}

func TestDisabled(t *testing.T) {
	require.False(t, New(Options{}).Enabled())
	require.False(t, New(Options{Server: "irc:6667"}).Enabled())

	var a *Announcer
	require.False(t, a.Enabled())
	a.Notify(context.Background(), "ignored")
}
