package pagination

import (
	"errors"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "12345", CreatedAt: "2026-08-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor.ID != "12345" || cursor.CreatedAt != "2026-08-01T00:00:00Z" {
		t.Fatalf("unexpected cursor: %+v", cursor)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("not-base64!!"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
	if _, err := DecodeCursor(""); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken for empty token, got %v", err)
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	items := []int{1, 2, 3}
	info := BuildCursorPageInfo(items, 2, func(v int) string { return "tok" })
	if !info.HasMore || info.NextPageToken != "tok" {
		t.Fatalf("expected more pages, got %+v", info)
	}

	info = BuildCursorPageInfo(items, 3, func(v int) string { return "tok" })
	if info.HasMore {
		t.Fatalf("expected final page, got %+v", info)
	}
}
