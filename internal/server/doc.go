// Package server exposes the relay runtime over HTTP. It serves the UI
// endpoints (start, live stream, event posting), the call-response API
// used by agents, and the capability catalog
package server
