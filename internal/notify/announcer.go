// Package notify announces finished evaluation runs on IRC.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"gopkg.in/irc.v4"

	"evalbot/internal"
	"evalbot/internal/logger"
)

type Options struct {
	Server   string
	Nick     string
	User     string
	RealName string
	// Password is sent to NickServ after registration.
	Password       string
	Channel        string
	ConnectTimeout time.Duration
}

// Announcer posts a few lines to a channel on a short-lived connection.
type Announcer struct {
	opts Options
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func New(opts Options) *Announcer {
	if opts.Nick == "" {
		opts.Nick = "evalbot"
	}
	if opts.User == "" {
		opts.User = opts.Nick
	}
	if opts.RealName == "" {
		opts.RealName = "evaluation runner"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = time.Duration(internal.DEFAULT_CONNECT_TIMEOUT) * time.Second
	}
	dialer := &net.Dialer{}
	return &Announcer{opts: opts, dial: dialer.DialContext}
}

// Enabled reports whether a server and channel are configured.
func (a *Announcer) Enabled() bool {
	return a != nil && a.opts.Server != "" && a.opts.Channel != ""
}

// Notify announces text and only logs failures. Multi-line text is sent one
// PRIVMSG per non-empty line.
func (a *Announcer) Notify(ctx context.Context, text string) {
	if !a.Enabled() {
		return
	}
	if err := a.Announce(ctx, strings.Split(text, "\n")); err != nil {
		logger.Warnf("Failed to announce run on %s: %v", a.opts.Server, err)
	}
}

// Announce connects, waits for the welcome, joins the channel, sends lines
// and quits.
func (a *Announcer) Announce(ctx context.Context, lines []string) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.ConnectTimeout)
	defer cancel()

	conn, err := a.dial(ctx, "tcp", a.opts.Server)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	welcome := make(chan struct{}, 1)
	joined := make(chan struct{}, 1)
	serverErr := make(chan string, 1)

	client := irc.NewClient(conn, irc.ClientConfig{
		Nick: a.opts.Nick,
		User: a.opts.User,
		Name: a.opts.RealName,
		Handler: irc.HandlerFunc(func(c *irc.Client, m *irc.Message) {
			switch m.Command {
			case internal.RPL_WELCOME:
				logger.Debugf(">> Welcome message received: %s", m.Trailing())
				signal(welcome)
			case internal.ERR_NICKNAMEINUSE:
				logger.Debugf(">> Nickname in use: %s", m.Trailing())
			case internal.CMD_JOIN:
				if m.Prefix != nil && m.Prefix.Name == c.CurrentNick() {
					signal(joined)
				}
			case internal.CMD_ERROR:
				select {
				case serverErr <- m.Trailing():
				default:
				}
			}
		}),
	})

	runErr := make(chan error, 1)
	go func() { runErr <- client.RunContext(ctx) }()
	defer conn.Close()

	wait := func(ch <-chan struct{}, what string) error {
		select {
		case <-ch:
			return nil
		case msg := <-serverErr:
			return fmt.Errorf("server error while waiting for %s: %s", what, msg)
		case err := <-runErr:
			if err == nil {
				err = errors.New("connection closed")
			}
			return fmt.Errorf("waiting for %s: %w", what, err)
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		}
	}

	if err := wait(welcome, "welcome"); err != nil {
		return err
	}
	if a.opts.Password != "" {
		if err := client.Writef("%s NickServ :IDENTIFY %s", internal.CMD_PRIVMSG, a.opts.Password); err != nil {
			return err
		}
	}

	if err := client.Writef("%s %s", internal.CMD_JOIN, a.opts.Channel); err != nil {
		return err
	}
	if err := wait(joined, "join"); err != nil {
		return err
	}

	sent := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := client.WriteMessage(&irc.Message{
			Command: internal.CMD_PRIVMSG,
			Params:  []string{a.opts.Channel, line},
		}); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		sent++
	}

	if err := client.Writef("%s :%s", internal.CMD_QUIT, "run announced"); err != nil {
		return err
	}
	logger.Successf("Announced run in %s (%d lines)", a.opts.Channel, sent)

	// Give the server a moment to flush and close on its side.
	select {
	case <-runErr:
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}
	return nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
