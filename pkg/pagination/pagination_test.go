package pagination

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -5: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for input, want := range cases {
		if got := NormalizeLimit(input); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", input, got, want)
		}
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatal("expected buffer of one")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{At: time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.At.Equal(cursor.At) || parsed.ID != cursor.ID {
		t.Fatalf("expected %+v, got %+v", cursor, parsed)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	if cursor, err := ParseCursor("  "); err != nil || cursor != nil {
		t.Fatalf("expected nil cursor, got %v %v", cursor, err)
	}
	for _, bad := range []string{"%%%", base64.RawURLEncoding.EncodeToString([]byte("not json")), base64.RawURLEncoding.EncodeToString([]byte(`{"t":"2026-01-01T00:00:00Z"}`))} {
		if _, err := ParseCursor(bad); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("ParseCursor(%q) = %v, want ErrInvalidCursor", bad, err)
		}
	}
}

func TestTrim(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	cursorOf := func(id uuid.UUID) Cursor { return Cursor{ID: id} }

	page, next := Trim(ids, 2, cursorOf)
	if len(page) != 2 || next == nil || next.ID != ids[1] {
		t.Fatalf("unexpected page %v next %v", page, next)
	}

	page, next = Trim(ids[:2], 2, cursorOf)
	if len(page) != 2 || next != nil {
		t.Fatalf("expected final page, got %v %v", page, next)
	}
}
