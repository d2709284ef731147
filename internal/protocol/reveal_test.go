package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: parsing client messages
// ---------------------------------------------------------------------------

func TestParseClientMessage_Watch(t *testing.T) {
	input := []byte(`{"type":"watch","token":"5f0c1a2e-8a4b-4c1d-9e7f-0b6d3c2a1e90"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeWatch {
		t.Fatalf("expected type %q, got %q", TypeWatch, msgType)
	}

	w, ok := msg.(WatchMsg)
	if !ok {
		t.Fatalf("expected WatchMsg, got %T", msg)
	}
	if w.Token != "5f0c1a2e-8a4b-4c1d-9e7f-0b6d3c2a1e90" {
		t.Errorf("expected token %q, got %q", "5f0c1a2e-8a4b-4c1d-9e7f-0b6d3c2a1e90", w.Token)
	}
}

func TestParseClientMessage_WatchWithoutToken(t *testing.T) {
	for _, input := range []string{
		`{"type":"watch"}`,
		`{"type":"watch","token":""}`,
		`{"type":"watch","participant_id":"1702000000001"}`,
	} {
		if _, _, err := ParseClientMessage([]byte(input)); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestParseClientMessage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"token":"a"}`},
		{"empty type", `{"type":""}`},
		{"unknown type", `{"type":"draw_now"}`},
		{"server type", `{"type":"assignment"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseClientMessage([]byte(tt.input)); err == nil {
				t.Errorf("expected error for %s", tt.input)
			}
		})
	}
}

func TestParseClientMessage_PingAndUnwatch(t *testing.T) {
	for _, typ := range []string{TypePing, TypeUnwatch} {
		msgType, _, err := ParseClientMessage([]byte(`{"type":"` + typ + `"}`))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", typ, err)
		}
		if msgType != typ {
			t.Errorf("expected %q, got %q", typ, msgType)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: building server messages
// ---------------------------------------------------------------------------

func TestNewServerMessage_Assignment(t *testing.T) {
	data, err := NewServerMessage(TypeAssignment, AssignmentMsg{
		DrawID:       "d-1",
		ReceiverName: "Luis",
		Budget:       "20€",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeAssignment {
		t.Errorf("expected type %q, got %v", TypeAssignment, result["type"])
	}
	if result["receiver_name"] != "Luis" {
		t.Errorf("expected receiver_name Luis, got %v", result["receiver_name"])
	}
	if _, ok := result["message"]; ok {
		t.Error("expected empty message to be omitted")
	}
}

func TestNewServerMessage_OverridesType(t *testing.T) {
	data, err := NewServerMessage(TypePong, PongMsg{Type: "wrong"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if result["type"] != TypePong {
		t.Errorf("expected type %q, got %v", TypePong, result["type"])
	}
}
