// Package workflows holds the built-in example workflows served by the
// relay binary
package workflows
