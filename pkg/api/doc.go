// Package api defines the wire types shared by the relay engine and its
// clients
//
// This package contains the stream message union, input and output block
// definitions, the call-response result shape, and the HTTP payloads used by
// the server, the client, and the MCP bridge
package api
