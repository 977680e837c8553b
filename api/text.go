package api

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseText parses one line of the text control-channel grammar
// (spec.md §4.5/§6): an optional `neighbor <ip>[,neighbor <ip>]* `
// selector prefix, then a verb, a noun, and verb-specific trailing
// tokens. Unrecognized trailing tokens are collected as either a
// single positional value (the bare noun argument, e.g. the prefix in
// `announce route <prefix>`) or as `key value` / `key [list]` pairs.
func ParseText(line string) (ParsedCommand, error) {
	fields := tokenize(line)
	if len(fields) == 0 {
		return ParsedCommand{}, fmt.Errorf("api: empty command")
	}

	pc := ParsedCommand{Args: map[string]string{}, Lists: map[string][]string{}}

	for len(fields) > 0 && fields[0] == "neighbor" {
		if len(fields) < 2 {
			return ParsedCommand{}, fmt.Errorf("api: neighbor selector missing address")
		}
		addr := strings.TrimSuffix(fields[1], ",")
		pc.Neighbors = append(pc.Neighbors, addr)
		fields = fields[2:]
		if len(fields) > 0 && fields[0] == "teardown" {
			if len(fields) < 2 {
				return ParsedCommand{}, fmt.Errorf("api: teardown missing subcode")
			}
			n, err := strconv.ParseUint(fields[1], 10, 8)
			if err != nil {
				return ParsedCommand{}, fmt.Errorf("api: bad teardown subcode %q: %w", fields[1], err)
			}
			pc.Verb = "neighbor"
			pc.Teardown = byte(n)
			pc.HasTeardown = true
			return pc, nil
		}
	}
	if len(fields) == 0 {
		return ParsedCommand{}, fmt.Errorf("api: command missing verb")
	}

	pc.Verb = fields[0]
	fields = fields[1:]

	switch pc.Verb {
	case "reload", "shutdown":
		return pc, nil
	case "show":
		if len(fields) == 0 {
			return ParsedCommand{}, fmt.Errorf("api: show needs a noun")
		}
		pc.Noun = strings.Join(fields, " ")
		return pc, nil
	}

	if len(fields) == 0 {
		return ParsedCommand{}, fmt.Errorf("api: %s needs a noun", pc.Verb)
	}
	pc.Noun = fields[0]
	fields = fields[1:]

	switch pc.Noun {
	case "route":
		if len(fields) == 0 {
			return ParsedCommand{}, fmt.Errorf("api: route command missing prefix")
		}
		pc.Args["route"] = fields[0]
		fields = fields[1:]
	case "watchdog":
		if len(fields) == 0 {
			return ParsedCommand{}, fmt.Errorf("api: watchdog command missing name")
		}
		pc.Args["watchdog"] = fields[0]
		fields = fields[1:]
	}

	if err := parseKeyedTail(fields, &pc); err != nil {
		return ParsedCommand{}, err
	}
	return pc, nil
}

// parseKeyedTail walks `key value` and `key [a b c]` runs, matching
// ExaBGP's route-attribute grammar style. Braces get no special
// treatment: `{` and `}` are read as ordinary tokens.
func parseKeyedTail(fields []string, pc *ParsedCommand) error {
	for len(fields) > 0 {
		key := fields[0]
		fields = fields[1:]
		if len(fields) == 0 {
			return fmt.Errorf("api: key %q missing value", key)
		}
		if fields[0] == "[" {
			var list []string
			fields = fields[1:]
			for len(fields) > 0 && fields[0] != "]" {
				list = append(list, strings.TrimSuffix(fields[0], ","))
				fields = fields[1:]
			}
			if len(fields) == 0 {
				return fmt.Errorf("api: key %q list missing closing ]", key)
			}
			fields = fields[1:]
			pc.Lists[key] = append(pc.Lists[key], list...)
			continue
		}
		if key == "community" || key == "as-path" {
			pc.Lists[key] = append(pc.Lists[key], fields[0])
			fields = fields[1:]
			continue
		}
		pc.Args[key] = fields[0]
		fields = fields[1:]
	}
	return nil
}

// tokenize splits on whitespace while keeping `[`/`]` as their own
// tokens even when written without surrounding spaces.
func tokenize(line string) []string {
	line = strings.ReplaceAll(line, "[", " [ ")
	line = strings.ReplaceAll(line, "]", " ] ")
	return strings.Fields(line)
}
