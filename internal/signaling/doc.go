// Package signaling is the WebSocket connection layer in front of the
// matchmaking core.
//
// Each connection runs one read loop; the first message must be a register
// carrying the caller's user id, after which matchmaking and relay messages
// are dispatched to match.Service. Transport-level closes become Disconnect
// events.
package signaling
