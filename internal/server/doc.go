// Package server implements the chat broker: the Hub actor that admits
// connections and owns the channel registry, the Channel actors that hold
// membership and broadcast lines, and the reader/writer pair serving each
// client stream.
//
// Line clients connect over TCP. An optional HTTP listener serves a health
// check, a WebSocket endpoint speaking the same line protocol, and a JSON
// listing of channel snapshots.
package server
