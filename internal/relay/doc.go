// Package relay turns output, input, confirm and loading calls made by
// workflow handlers into durable, replay-safe steps that emit messages to a
// run's stream.
//
// Every primitive is named after the durable step position at which it
// begins, so a handler replayed after a restart reproduces the same step
// names, message ids and event names.
package relay
