// Package protocol defines the JSON message vocabulary exchanged over the
// signaling WebSocket.
//
// Negotiation payloads (offer/answer/ice_candidate) and chat payloads are
// opaque to the server: they are carried as raw JSON and forwarded verbatim.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type MessageType string

const (
	// Client -> server.
	MessageTypeRegister     MessageType = "register"
	MessageTypeFindMatch    MessageType = "find_match"
	MessageTypeCancelSearch MessageType = "cancel_search"
	MessageTypeNext         MessageType = "next"
	MessageTypeLeave        MessageType = "leave"

	// Relayed between partners (either direction).
	MessageTypeOffer        MessageType = "offer"
	MessageTypeAnswer       MessageType = "answer"
	MessageTypeICECandidate MessageType = "ice_candidate"
	MessageTypeChat         MessageType = "chat"

	// Server -> client.
	MessageTypeWaiting     MessageType = "waiting"
	MessageTypeMatched     MessageType = "matched"
	MessageTypePartnerLeft MessageType = "partner_left"
	MessageTypeError       MessageType = "error"
)

// IsRelayed reports whether t is forwarded opaquely to the sender's partner.
func (t MessageType) IsRelayed() bool {
	switch t {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate, MessageTypeChat:
		return true
	}
	return false
}

// LeaveReason explains a partner_left notification.
type LeaveReason string

const (
	LeaveReasonNext       LeaveReason = "next"
	LeaveReasonLeave      LeaveReason = "leave"
	LeaveReasonDisconnect LeaveReason = "disconnect"
)

// ClientMessage is an inbound message from a connected client.
type ClientMessage struct {
	Type MessageType `json:"type"`

	// UserID accompanies register only.
	UserID string `json:"userId,omitempty"`

	// Payload accompanies relayed message types only. Never inspected.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is an outbound message to a connected client.
type ServerMessage struct {
	Type MessageType `json:"type"`

	// Matched fields.
	PartnerID       string `json:"partnerId,omitempty"`
	PartnerUsername string `json:"partnerUsername,omitempty"`
	Initiator       bool   `json:"initiator,omitempty"`

	// Partner_left field.
	Reason LeaveReason `json:"reason,omitempty"`

	// Relayed fields.
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error fields.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ParseClientMessage decodes and validates a single inbound message.
//
// Decoding is strict: unknown fields and trailing data are rejected so
// client/protocol drift surfaces as an explicit error instead of silently
// dropped fields.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg ClientMessage
	if err := dec.Decode(&msg); err != nil {
		return ClientMessage{}, err
	}
	if err := msg.validate(); err != nil {
		return ClientMessage{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ClientMessage{}, fmt.Errorf("unexpected trailing data")
	}
	return msg, nil
}

func (m ClientMessage) validate() error {
	switch m.Type {
	case MessageTypeRegister:
		if m.UserID == "" {
			return fmt.Errorf("register message missing userId")
		}
		if len(m.Payload) != 0 {
			return fmt.Errorf("register message has unexpected payload")
		}
	case MessageTypeFindMatch, MessageTypeCancelSearch, MessageTypeNext, MessageTypeLeave:
		if m.UserID != "" || len(m.Payload) != 0 {
			return fmt.Errorf("%s message has unexpected fields", m.Type)
		}
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate, MessageTypeChat:
		if len(m.Payload) == 0 {
			return fmt.Errorf("%s message missing payload", m.Type)
		}
		if m.UserID != "" {
			return fmt.Errorf("%s message has unexpected userId", m.Type)
		}
	default:
		return fmt.Errorf("unsupported message type %q", m.Type)
	}
	return nil
}
