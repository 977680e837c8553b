package api

import (
	"fmt"
	"strings"

	"github.com/routebird/bgpd/reactor"
)

// renderShow answers a `show ...` command directly against the
// reactor's snapshot accessors. Unlike announce/withdraw/neighbor
// commands, show is read-only and is served out of the reactor's
// single-threaded command queue rather than through it: nothing it
// reads requires ordering relative to concurrent mutating commands.
func renderShow(r *reactor.Reactor, noun string) (string, error) {
	switch {
	case noun == "neighbor" || noun == "neighbors":
		var b strings.Builder
		for _, s := range r.Snapshot() {
			fmt.Fprintf(&b, "neighbor %s state %s adj-rib-in %d adj-rib-out %d sent %d received %d\n",
				s.Name, s.State, s.RIBInSize, s.RIBOutSize, s.Sent, s.Received)
		}
		return b.String(), nil

	case strings.HasPrefix(noun, "adj-rib-in"):
		name := strings.TrimSpace(strings.TrimPrefix(noun, "adj-rib-in"))
		return renderAdjRIB(r, name, true)

	case strings.HasPrefix(noun, "adj-rib-out"):
		name := strings.TrimSpace(strings.TrimPrefix(noun, "adj-rib-out"))
		return renderAdjRIB(r, name, false)
	}
	return "", fmt.Errorf("api: unknown show target %q", noun)
}

func renderAdjRIB(r *reactor.Reactor, name string, in bool) (string, error) {
	var b strings.Builder
	names := []string{name}
	if name == "" {
		snap := r.Snapshot()
		names = names[:0]
		for _, s := range snap {
			names = append(names, s.Name)
		}
	}
	for _, n := range names {
		if in {
			table, ok := r.AdjRIBIn(n)
			if !ok {
				continue
			}
			for _, route := range table.All() {
				fmt.Fprintf(&b, "neighbor %s %s\n", n, route.NLRI.String())
			}
		} else {
			table, ok := r.AdjRIBOut(n)
			if !ok {
				continue
			}
			for _, route := range table.All() {
				fmt.Fprintf(&b, "neighbor %s %s\n", n, route.NLRI.String())
			}
		}
	}
	return b.String(), nil
}
