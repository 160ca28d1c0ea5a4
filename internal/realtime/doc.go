// Package realtime implements the server-sent-events broadcasting layer:
// a per-process client registry keyed by structured channels, an actor-based
// broadcaster that fans typed events out to registered clients, and the
// publisher port that lets reconciliation code emit events without knowing
// whether delivery is local or bridged across instances.
package realtime
