package pagination

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParamsSize(t *testing.T) {
	cases := []struct {
		limit int
		want  int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{10, 10},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tc := range cases {
		p := Params{Limit: tc.limit}
		if got := p.Size(); got != tc.want {
			t.Fatalf("Size(%d) = %d, want %d", tc.limit, got, tc.want)
		}
		if p.Fetch() != tc.want+1 {
			t.Fatalf("Fetch(%d) should request one extra row", tc.limit)
		}
	}
}

func TestCursorEncodeDecode(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 123, time.UTC), ID: uuid.New()}
	got, err := Params{Cursor: want.Encode()}.Decode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("expected %+v got %+v", want, got)
	}

	if c, err := (Params{Cursor: "  "}).Decode(); err != nil || c != nil {
		t.Fatalf("blank cursor should mean first page")
	}
	bad := []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("abc:" + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("12:not-a-uuid")),
	}
	for _, raw := range bad {
		if _, err := (Params{Cursor: raw}).Decode(); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected ErrInvalidCursor for %q, got %v", raw, err)
		}
	}
}

func TestTrim(t *testing.T) {
	rows, more := Trim([]int{1, 2, 3}, 2)
	if len(rows) != 2 || !more {
		t.Fatalf("expected two rows and more, got %v %v", rows, more)
	}
	rows, more = Trim([]int{1, 2}, 2)
	if len(rows) != 2 || more {
		t.Fatalf("expected last page, got %v %v", rows, more)
	}
}
