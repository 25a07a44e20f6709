// Package stream persists each run's append-only message log and fans it
// out to live readers
//
// A Hub owns one actor per run. The actor serializes every append and
// subscription for its run, so a new reader always receives the persisted
// log followed by live messages with no gap and no duplicate. Logs are kept
// in a pluggable Store (memory, Redis, or a gocloud blob bucket)
package stream
