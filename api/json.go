package api

import "encoding/json"

// jsonCommand is the wire shape for the JSON encoding of the control
// channel, mirroring ParsedCommand field-for-field so Build can run
// unchanged regardless of which encoding decoded the line.
type jsonCommand struct {
	Neighbors []string            `json:"neighbors,omitempty"`
	Verb      string              `json:"verb"`
	Noun      string              `json:"noun,omitempty"`
	Args      map[string]string   `json:"args,omitempty"`
	Lists     map[string][]string `json:"lists,omitempty"`
	Teardown  *byte               `json:"teardown,omitempty"`
}

// ParseJSON decodes one JSON control-channel line into a ParsedCommand.
func ParseJSON(line []byte) (ParsedCommand, error) {
	var jc jsonCommand
	if err := json.Unmarshal(line, &jc); err != nil {
		return ParsedCommand{}, err
	}
	pc := ParsedCommand{
		Neighbors: jc.Neighbors,
		Verb:      jc.Verb,
		Noun:      jc.Noun,
		Args:      jc.Args,
		Lists:     jc.Lists,
	}
	if pc.Args == nil {
		pc.Args = map[string]string{}
	}
	if pc.Lists == nil {
		pc.Lists = map[string][]string{}
	}
	if jc.Teardown != nil {
		pc.Verb = "neighbor"
		pc.Teardown = *jc.Teardown
		pc.HasTeardown = true
	}
	return pc, nil
}

// EncodeEventJSON renders an output event as one JSON line.
func EncodeEventJSON(peer, kind string, data interface{}) ([]byte, error) {
	out, err := json.Marshal(struct {
		Peer string      `json:"peer,omitempty"`
		Kind string      `json:"kind"`
		Data interface{} `json:"data,omitempty"`
	}{Peer: peer, Kind: kind, Data: data})
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
