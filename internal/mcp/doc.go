// Package mcp exposes relay workflows to agents as MCP tools. Each workflow
// becomes a tool; relay_respond and relay_status continue paused runs
package mcp
