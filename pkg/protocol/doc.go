// Package protocol implements the Model Context Protocol's JSON-RPC 2.0
// framing and the fixed method dispatch table that sits on top of it.
//
// The Dispatcher in dispatch.go is purely functional over its inputs
// (Session, Registry, Validator, Kernel, Request): it performs no I/O of
// its own and holds no state beyond the Session passed to it on every
// call. Side effects — registry mutation, command execution, audit
// emission — are delegated entirely to the collaborators it is
// constructed with.
//
// # Message flow
//
//  1. A client connects and sends `initialize`.
//  2. The daemon responds with its fixed capability advertisement.
//  3. The client sends `initialized`.
//  4. `tools/list`, `tools/call`, `resources/list`, and `resources/read`
//     become available; any of these four dispatched beforehand fails
//     with -32002. `completion/complete` is answered at any point.
//
// # Error codes
//
// This package never defines its own error code taxonomy; every code it
// emits comes from github.com/archmcp/mcpd/pkg/errors.
package protocol
