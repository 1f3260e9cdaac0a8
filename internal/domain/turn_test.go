package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/rensmac/sparq-chat/internal/domain"
)

func TestExchangeOffset(t *testing.T) {
	tests := []struct {
		exchange int
		offset   int
	}{
		{0, 0},
		{1, 2},
		{2, 4},
		{5, 10},
	}

	for _, tt := range tests {
		if got := domain.ExchangeOffset(tt.exchange); got != tt.offset {
			t.Errorf("ExchangeOffset(%d) = %d, want %d", tt.exchange, got, tt.offset)
		}
	}
}

func TestExchanges(t *testing.T) {
	history := []domain.Turn{
		{Role: domain.RoleUser, Text: "a"},
		{Role: domain.RoleModel, Text: "b"},
		{Role: domain.RoleUser, Text: "c"},
		{Role: domain.RoleModel, Text: "d"},
	}

	if got := domain.Exchanges(history); got != 2 {
		t.Errorf("Exchanges = %d, want 2", got)
	}
	if got := domain.Exchanges(nil); got != 0 {
		t.Errorf("Exchanges(nil) = %d, want 0", got)
	}
	// A trailing unmatched user turn does not count as an exchange.
	if got := domain.Exchanges(history[:3]); got != 1 {
		t.Errorf("Exchanges with odd length = %d, want 1", got)
	}
}

func TestTurnJSON(t *testing.T) {
	turn := domain.Turn{Role: domain.RoleModel, Text: "hello"}

	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"role":"model","text":"hello"}` {
		t.Errorf("marshaled turn = %s", data)
	}
}

func TestHistoryJSONRoundTrip(t *testing.T) {
	history := []domain.Turn{
		{Role: domain.RoleUser, Text: "first question"},
		{Role: domain.RoleModel, Text: "first reply"},
		{Role: domain.RoleUser, Text: "unicode: héllo 世界 \"quoted\"\nnewline"},
		{Role: domain.RoleModel, Text: ""},
	}

	data, err := json.Marshal(history)
	if err != nil {
		t.Fatal(err)
	}

	var got []domain.Turn
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if len(got) != len(history) {
		t.Fatalf("round trip returned %d turns, want %d", len(got), len(history))
	}
	for i := range history {
		if got[i] != history[i] {
			t.Errorf("turn %d = %+v, want %+v", i, got[i], history[i])
		}
	}
}
