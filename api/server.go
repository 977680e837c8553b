package api

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/routebird/bgpd/reactor"
)

// Encoding selects which wire form a control-channel connection speaks.
type Encoding int

const (
	EncodingText Encoding = iota
	EncodingJSON
)

// Control hooks the verbs that fall outside the reactor's per-peer
// command model: `reload` re-reads configuration, `shutdown` begins
// an orderly daemon exit.
type Control struct {
	Reload   func() error
	Shutdown func()
}

// Conn serves one control-channel connection: it parses incoming
// command lines in the connection's encoding, forwards them to the
// reactor's command queue, and relays the reactor's output events back
// out in the same encoding (spec.md §4.5). Commands are forwarded in
// arrival order and the reactor itself serializes their execution, so
// a slow or long-running command never blocks a concurrent connection.
type Conn struct {
	rw       io.ReadWriter
	encoding Encoding
	commands chan<- reactor.Command
	reactor  *reactor.Reactor
	control  Control
	log      *slog.Logger
}

func NewConn(rw io.ReadWriter, encoding Encoding, commands chan<- reactor.Command, r *reactor.Reactor, control Control, log *slog.Logger) *Conn {
	return &Conn{rw: rw, encoding: encoding, commands: commands, reactor: r, control: control, log: log}
}

// Serve reads lines until EOF or ctx is cancelled, translating each
// into a reactor.Command. It does not itself relay OutputEvents; call
// RelayEvents in a separate goroutine sharing the same rw if the
// connection should also receive the asynchronous event stream.
func (c *Conn) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(c.rw)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pc, err := c.decode(line)
		if err != nil {
			c.log.Warn("api: malformed command", "err", err, "line", line)
			continue
		}

		switch pc.Verb {
		case "show":
			out, err := renderShow(c.reactor, pc.Noun)
			if err != nil {
				c.log.Warn("api: show failed", "err", err)
				continue
			}
			if _, err := io.WriteString(c.rw, out); err != nil {
				return err
			}
			continue
		case "reload":
			if c.control.Reload != nil {
				if err := c.control.Reload(); err != nil {
					c.log.Warn("api: reload failed", "err", err)
				}
			}
			continue
		case "shutdown":
			if c.control.Shutdown != nil {
				c.control.Shutdown()
			}
			continue
		}

		cmd, err := Build(pc)
		if err != nil {
			c.log.Warn("api: command build failed", "err", err, "line", line)
			continue
		}
		select {
		case c.commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (c *Conn) decode(line string) (ParsedCommand, error) {
	if c.encoding == EncodingJSON {
		return ParseJSON([]byte(line))
	}
	return ParseText(line)
}

// RelayEvents drains events and writes them to the connection in the
// connection's encoding, one per line, until ctx is cancelled or
// events is closed.
func (c *Conn) RelayEvents(ctx context.Context, events <-chan reactor.OutputEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			var line []byte
			var err error
			if c.encoding == EncodingJSON {
				line, err = EncodeEventJSON(ev.Peer, ev.Kind, ev.Data)
			} else {
				line = []byte(EncodeEventText(ev.Peer, ev.Kind, ev.Data))
			}
			if err != nil {
				c.log.Warn("api: event encode failed", "err", err)
				continue
			}
			if _, err := c.rw.Write(line); err != nil {
				return err
			}
		}
	}
}

// ListenAndServe accepts connections on ln, serving each with the
// given encoding until ctx is cancelled. Each connection gets its own
// fan-out of the shared events channel so a slow reader on one
// connection can't starve another; broker owns that fan-out.
func ListenAndServe(ctx context.Context, ln net.Listener, encoding Encoding, commands chan<- reactor.Command, r *reactor.Reactor, control Control, broker *EventBroker, log *slog.Logger) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go func() {
			defer conn.Close()
			c := NewConn(conn, encoding, commands, r, control, log)
			sub := broker.Subscribe()
			defer broker.Unsubscribe(sub)
			go c.RelayEvents(ctx, sub)
			if err := c.Serve(ctx); err != nil && err != io.EOF {
				log.Debug("api: connection closed", "err", err)
			}
		}()
	}
}
