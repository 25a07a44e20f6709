// Package durable runs workflow handlers that survive process restarts
//
// A handler performs its work through a Step. Every named unit of work,
// event wait and sleep is recorded in a per-instance history; when an
// instance is re-executed after a restart, recorded steps return their
// stored results instead of running again, and the handler resumes at the
// first step it had not finished. Step names must be reproduced in the
// same order on replay or the instance fails with ErrNondeterministic
package durable
