package property

import (
	"errors"
	"testing"
	"time"
)

func TestInt(t *testing.T) {
	tests := []struct {
		value   any
		want    int
		wantErr bool
	}{
		{5, 5, false},
		{int64(7), 7, false},
		{float64(3), 3, false},
		{"12", 12, false},
		{1.5, 0, true},
		{"x", 0, true},
		{true, 0, true},
	}

	for _, tt := range tests {
		got, err := Int("size", tt.value)
		if tt.wantErr {
			if !errors.Is(err, ErrNotSupported) {
				t.Errorf("%v: expected ErrNotSupported, got %v", tt.value, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.value, tt.want, got)
		}
	}
}

func TestDuration(t *testing.T) {
	d, err := Duration("ttl", "1m")
	if err != nil || d != time.Minute {
		t.Errorf("expected 1m, got %v, %v", d, err)
	}

	d, err = Duration("ttl", 30)
	if err != nil || d != 30*time.Second {
		t.Errorf("expected 30s, got %v, %v", d, err)
	}

	if _, err := Duration("ttl", "soon"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}

func TestStrings(t *testing.T) {
	got, err := Strings("paths", []any{"a.js", "b.js"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1] != "b.js" {
		t.Errorf("unexpected result: %v", got)
	}

	if _, err := Strings("paths", []any{"a.js", 1}); !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}

func TestBoolAndString(t *testing.T) {
	if b, err := Bool("on", "true"); err != nil || !b {
		t.Errorf("expected true, got %v, %v", b, err)
	}
	if _, err := String("name", 1); !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
	if err := Unsupported("color"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}
