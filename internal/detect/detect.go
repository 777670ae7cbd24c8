// Package detect sniffs input to determine the event format.
package detect

import (
	"bytes"
	"encoding/json"
)

// Format represents a recognized input format.
type Format int

const (
	Unknown    Format = iota
	Lifecycle         // verdict lifecycle NDJSON (run/scenario/step events)
	GoTestJSON        // go test -json NDJSON stream
)

func (f Format) String() string {
	switch f {
	case Lifecycle:
		return "lifecycle"
	case GoTestJSON:
		return "gotest"
	default:
		return "unknown"
	}
}

// SniffLen is how many leading bytes a caller should buffer for Sniff.
const SniffLen = 64 * 1024

// Sniff examines the first complete line of input to determine format.
func Sniff(data []byte) Format {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 || data[0] != '{' {
		return Unknown
	}
	if end := bytes.IndexByte(data, '\n'); end >= 0 {
		data = data[:end]
	}

	var probe struct {
		Kind    string `json:"kind"`
		Action  string `json:"Action"`
		Package string `json:"Package"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Unknown
	}
	switch {
	case lifecycleKinds[probe.Kind]:
		return Lifecycle
	case goTestActions[probe.Action]:
		return GoTestJSON
	}
	return Unknown
}

var lifecycleKinds = map[string]bool{
	"run-started": true, "run-finished": true,
	"scenario-started": true, "scenario-finished": true,
	"step-started": true, "step-finished": true,
}

var goTestActions = map[string]bool{
	"start": true, "run": true, "pause": true, "cont": true,
	"pass": true, "bench": true, "fail": true, "output": true, "skip": true,
}
