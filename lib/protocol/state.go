// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "strings"

// State is the connection state of a session to a maestro or daemon.
// The same vocabulary is used for the client's own session and for
// the daemon states the maestro reports in SST messages.
type State uint8

const (
	StateUnknown State = iota
	StateDisconnected
	StateLaunching
	StateOpeningTunnel
	StateConnecting
	// StateConnected means the socket is open and the login was sent
	// but not yet acknowledged.
	StateConnected
	StateLoggedIn
)

var stateNames = [...]string{
	StateUnknown:       "unknown",
	StateDisconnected:  "disconnected",
	StateLaunching:     "launching",
	StateOpeningTunnel: "opening_tunnel",
	StateConnecting:    "connecting",
	StateConnected:     "logging_in",
	StateLoggedIn:      "logged_in",
}

// legacyStateNames are the names older maestros put on the wire. Their
// "connected" means the daemon accepted the login.
var legacyStateNames = map[string]State{
	"run":         StateLaunching,
	"open_tunnel": StateOpeningTunnel,
	"connect":     StateConnecting,
	"connected":   StateLoggedIn,
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return stateNames[StateUnknown]
}

// ParseState maps a wire state name to a State, case-insensitively.
// Unrecognized names map to StateUnknown.
func ParseState(name string) State {
	name = strings.ToLower(strings.TrimSpace(name))
	for state, stateName := range stateNames {
		if stateName == name {
			return State(state)
		}
	}
	if state, ok := legacyStateNames[name]; ok {
		return state
	}
	return StateUnknown
}
