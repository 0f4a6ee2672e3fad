package logger

import "testing"

func TestMaskAuthorization(t *testing.T) {
	got := MaskAuthorization("Bearer abcdef1234")
	want := "Bearer ****1234"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskAuthorizationBareToken(t *testing.T) {
	got := MaskAuthorization("vx_live_9f8e7d6c")
	want := "****7d6c"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMaskJSON(t *testing.T) {
	input := map[string]any{
		"token": "abc12345",
		"nested": map[string]any{
			"api_key": "key_12345678",
		},
		"amount": int64(45),
	}
	masked := MaskJSON(input)
	if masked["token"] != "****2345" {
		t.Fatalf("expected masked token, got %v", masked["token"])
	}
	nested, ok := masked["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map")
	}
	if nested["api_key"] != "****5678" {
		t.Fatalf("expected masked api_key, got %v", nested["api_key"])
	}
	if masked["amount"] != int64(45) {
		t.Fatalf("expected amount untouched, got %v", masked["amount"])
	}
}
