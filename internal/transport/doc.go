// Package transport adapts byte-stream connections to the line-oriented
// protocol.Stream used by the chat broker: raw TCP connections framed by
// newlines, and WebSocket connections framed by text messages.
package transport
