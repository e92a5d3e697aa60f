// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the framing spoken between the client,
// the maestro, and its daemons.
//
// Two framings share the wire. The legacy framing carries push
// notifications and the login exchange:
//
//	CODE SP TOTALLEN SP ARGBLOB LF
//
// where ARGBLOB is a space-separated list of LEN|VALUE tokens and
// TOTALLEN is the byte length of ARGBLOB. Each code maps to a [Kind]
// with a fixed field count; an unknown code or a field-count mismatch
// is a [ParseError] and poisons the connection's [Decoder].
//
// The second framing is an HTTP-like request/response exchange used
// for action requests:
//
//	PUT /server?address=host;pass=
//	content-length:0
//
// A connection's framing is decided by its first bytes and never
// changes afterwards. Decoding is incremental: bytes may be fed in any
// chunking and the produced frames are identical to a single feed of
// the whole stream.
package protocol
