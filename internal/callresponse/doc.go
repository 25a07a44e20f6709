// Package callresponse folds a run's asynchronous message stream into
// blocking request/response calls: start a run and wait for its first
// pause, answer a pause and wait for the next one.
package callresponse
