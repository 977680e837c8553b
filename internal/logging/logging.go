// Package logging wires up the daemon's single slog.Logger: tinted
// console output when the log output (stderr by default) is a
// terminal, JSON when it is not or when Options.JSON is set. This
// satisfies the "Log sink" collaborator from spec.md §6 via an
// slog.Handler adapter so external callers may substitute their own.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Options controls the constructed logger.
type Options struct {
	Level  slog.Level
	Output io.Writer // defaults to os.Stderr
	JSON   bool      // force JSON regardless of TTY detection
}

// New builds the process-wide logger per Options.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.JSON || !isTerminal(out) {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level}))
	}
	return slog.New(tint.NewHandler(out, &tint.Options{Level: opts.Level}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Peer returns a logger scoped to one peer, per spec's "every
// peer-scoped log line carries slog.Group(\"peer\", ...)" convention.
func Peer(l *slog.Logger, name, remote string, asn uint32) *slog.Logger {
	return l.With(slog.Group("peer", slog.String("name", name), slog.String("remote", remote), slog.Uint64("asn", uint64(asn))))
}
