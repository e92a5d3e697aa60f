// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// Kind identifies a legacy message. The set is closed: the decoder
// rejects any code that does not map to one of these values.
type Kind uint8

const (
	KindInvalid Kind = iota

	// KindJob defines or refreshes a job (21 fields).
	KindJob
	// KindStatus changes a job's status (id, status, parameter).
	KindStatus
	// KindOutput appends output to one fraction of a job.
	KindOutput
	// KindCommand sets the command line of one fraction of a job.
	KindCommand
	// KindIssues replaces a job's issue text.
	KindIssues
	// KindJobClose removes a job.
	KindJobClose

	// KindError reports an error (address, subsystem, type, message).
	KindError
	// KindReturn answers a previous request. Its first field names
	// the answered kind and the rest follow that kind's result shape.
	KindReturn
	// KindLogin opens a session (version, hostname, locality, display).
	KindLogin

	// KindServerStatus and KindServerStatusAll describe a daemon.
	KindServerStatus
	KindServerStatusAll
	// KindServerRemove drops a daemon.
	KindServerRemove
	// KindAutoconnect toggles a daemon's autoconnect flag.
	KindAutoconnect
	// KindGroups replaces a daemon's tag list.
	KindGroups
	// KindMPI lists the MPI flavors a daemon offers.
	KindMPI

	// KindPassword asks the client for a daemon's SSH password.
	KindPassword
	// KindQuestion asks the client a yes/no question about a daemon.
	KindQuestion
	// KindConfirm asks the client to confirm an action on a daemon.
	KindConfirm

	// KindPath asks the maestro to create, rename or delete a path.
	KindPath
	// KindHome announces the maestro's home directory.
	KindHome

	kindCount
)

// VariableFields marks a kind whose field count depends on its
// content (only [KindReturn]).
const VariableFields = -1

type kindInfo struct {
	code   string
	fields int
}

var kinds = [kindCount]kindInfo{
	KindInvalid:         {"", 0},
	KindJob:             {"JOB", 21},
	KindStatus:          {"STA", 3},
	KindOutput:          {"OUT", 3},
	KindCommand:         {"CMD", 3},
	KindIssues:          {"ISS", 2},
	KindJobClose:        {"JCL", 1},
	KindError:           {"ERR", 4},
	KindReturn:          {"RET", VariableFields},
	KindLogin:           {"INI", 4},
	KindServerStatus:    {"SST", 8},
	KindServerStatusAll: {"SSTA", 8},
	KindServerRemove:    {"SRM", 1},
	KindAutoconnect:     {"AC", 2},
	KindGroups:          {"AGRP", 2},
	KindMPI:             {"MPI", 2},
	KindPassword:        {"PSS", 2},
	KindQuestion:        {"QST", 3},
	KindConfirm:         {"CFRM", 2},
	KindPath:            {"PATH", 3},
	KindHome:            {"HOME", 1},
}

// returnFields is the number of fields following the answered code in
// a RET message.
var returnFields = map[Kind]int{
	KindLogin: 3, // hostname, display port, filesystem id
	KindPath:  2, // error code, path
}

// maxCodeLength bounds how long the decoder waits for the space that
// ends a code before declaring the frame malformed.
const maxCodeLength = 4

var kindByCode = func() map[string]Kind {
	byCode := make(map[string]Kind, len(kinds))
	for kind := KindInvalid + 1; kind < kindCount; kind++ {
		byCode[kinds[kind].code] = kind
	}
	return byCode
}()

// LookupKind returns the kind for a wire code.
func LookupKind(code string) (Kind, bool) {
	kind, ok := kindByCode[code]
	return kind, ok
}

// Code returns the wire code, e.g. "JOB".
func (k Kind) Code() string {
	if k >= kindCount {
		return ""
	}
	return kinds[k].code
}

// Fields returns the expected field count, or [VariableFields].
func (k Kind) Fields() int {
	if k >= kindCount {
		return 0
	}
	return kinds[k].fields
}

// ReturnFields returns the number of result fields a RET carries when
// answering k, and whether k can be answered at all.
func ReturnFields(k Kind) (int, bool) {
	count, ok := returnFields[k]
	return count, ok
}

func (k Kind) String() string {
	if code := k.Code(); code != "" {
		return code
	}
	return "invalid"
}
