// Copyright 2026 The GeBR Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the client's YAML configuration.
//
// The file is named by the GEBR_CONFIG environment variable (via
// [Load]) or a --config flag (via [LoadFile]). Values in the file are
// merged over [Default]; without a file the defaults apply unchanged.
// Environment variables never override individual settings.
//
// After loading, ${HOME}, ${SSH_AUTH_SOCK} and ${VAR:-default}
// patterns are expanded in path fields.
//
// Sections:
//
//   - maestro: address, binary name, launch command templates and the
//     protocol version sent at login
//   - tunnel: local base ports and the reachability poll interval
//   - ssh: user, port, known_hosts, identity files, agent socket and
//     the password attempt limit
//   - mount: base port for the display filesystem mount
//   - journal: where inbound frames are recorded, if anywhere
package config
