package protocol

import (
	"strings"
	"testing"
)

func TestParseClientMessage_Valid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want MessageType
	}{
		{"register", `{"type":"register","userId":"u1"}`, MessageTypeRegister},
		{"find_match", `{"type":"find_match"}`, MessageTypeFindMatch},
		{"cancel_search", `{"type":"cancel_search"}`, MessageTypeCancelSearch},
		{"next", `{"type":"next"}`, MessageTypeNext},
		{"leave", `{"type":"leave"}`, MessageTypeLeave},
		{"offer", `{"type":"offer","payload":{"sdp":"v=0"}}`, MessageTypeOffer},
		{"answer", `{"type":"answer","payload":{"sdp":"v=0"}}`, MessageTypeAnswer},
		{"ice_candidate", `{"type":"ice_candidate","payload":{"candidate":"c"}}`, MessageTypeICECandidate},
		{"chat", `{"type":"chat","payload":"hello"}`, MessageTypeChat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("ParseClientMessage: %v", err)
			}
			if msg.Type != tc.want {
				t.Fatalf("type=%q, want %q", msg.Type, tc.want)
			}
		})
	}
}

func TestParseClientMessage_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `find_match`},
		{"unknown type", `{"type":"dance"}`},
		{"empty type", `{}`},
		{"unknown field", `{"type":"find_match","role":"admin"}`},
		{"trailing data", `{"type":"find_match"}{"type":"leave"}`},
		{"register without userId", `{"type":"register"}`},
		{"register with payload", `{"type":"register","userId":"u1","payload":{}}`},
		{"find_match with userId", `{"type":"find_match","userId":"u1"}`},
		{"offer without payload", `{"type":"offer"}`},
		{"offer with userId", `{"type":"offer","userId":"u1","payload":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseClientMessage([]byte(tc.raw)); err == nil {
				t.Fatalf("expected error for %s", tc.raw)
			}
		})
	}
}

func TestParseClientMessage_PayloadForwardedVerbatim(t *testing.T) {
	t.Parallel()

	raw := `{"type":"offer","payload":{"sdp":"v=0\r\no=- 1 1 IN IP4 0.0.0.0","nested":[1,2,3]}}`
	msg, err := ParseClientMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ParseClientMessage: %v", err)
	}
	if !strings.Contains(string(msg.Payload), `"nested":[1,2,3]`) {
		t.Fatalf("payload not preserved: %s", msg.Payload)
	}
}

func TestIsRelayed(t *testing.T) {
	t.Parallel()

	relayed := []MessageType{MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate, MessageTypeChat}
	for _, mt := range relayed {
		if !mt.IsRelayed() {
			t.Fatalf("%q should be relayed", mt)
		}
	}
	notRelayed := []MessageType{
		MessageTypeRegister, MessageTypeFindMatch, MessageTypeCancelSearch,
		MessageTypeNext, MessageTypeLeave, MessageTypeWaiting, MessageTypeMatched,
		MessageTypePartnerLeft, MessageTypeError,
	}
	for _, mt := range notRelayed {
		if mt.IsRelayed() {
			t.Fatalf("%q should not be relayed", mt)
		}
	}
}
