// Package agent adapts runs for tool-calling agents. It builds a catalog of
// workflow capabilities with JSON Schema parameters and renders
// call-response results as plain text.
package agent
