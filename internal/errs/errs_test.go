package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, None},
		{"direct", E(FileNotFound, "storage.ReadFile", nil), FileNotFound},
		{"wrapped once", fmt.Errorf("open book: %w", E(ParseFailed, "epub.Open", nil)), ParseFailed},
		{"wrapped twice", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", E(CacheFull, "cache", nil))), CacheFull},
		{"plain error", errors.New("something"), IOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", E(InvalidState, "reader.Task.Start", nil))
	if !Is(err, InvalidState) {
		t.Fatalf("Is missed the wrapped kind")
	}
	if Is(err, FileNotFound) {
		t.Fatalf("Is matched the wrong kind")
	}
	if Is(nil, None) != true {
		t.Fatalf("nil should carry kind None")
	}
}

func TestErrorMessage(t *testing.T) {
	e := E(SdCardNotFound, "storage.Open", errors.New("stat /mnt/sd: no such file"))
	msg := e.Error()
	if msg != "storage.Open: SD card not found: stat /mnt/sd: no such file" {
		t.Fatalf("message = %q", msg)
	}
	bare := E(DisplayFailed, "display.Refresh", nil)
	if bare.Error() != "display.Refresh: Display error" {
		t.Fatalf("message = %q", bare.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := E(IOError, "op", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("wrap chain lost the cause")
	}
}
