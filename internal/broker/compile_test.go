package broker

import (
	"context"
	"testing"
)

func TestSubstitute(t *testing.T) {
	got := substitute([]string{"go", "build", "-o", "{bin}", "{src}"}, "/tmp/main.go", "/tmp/player")
	want := []string{"go", "build", "-o", "/tmp/player", "/tmp/main.go"}
	if len(got) != len(want) {
		t.Fatalf("substitute returned %d args, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate([]byte("short"), 10); got != "short" {
		t.Errorf("truncate kept a short string as %q", got)
	}
	long := make([]byte, 20)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(long, 5)
	if got != "xxxxx...(truncated)" {
		t.Errorf("truncate(20 bytes, 5) = %q", got)
	}
}

func TestCompileUnsupportedLanguage(t *testing.T) {
	q := NewCompileQueue(t.TempDir(), 10, 10)
	_, err := q.Compile(context.Background(), "sub1", "cobol", "source")
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
	var unsupported *UnsupportedLanguage
	if _, ok := err.(*UnsupportedLanguage); !ok {
		t.Errorf("expected *UnsupportedLanguage, got %T", err)
	}
	_ = unsupported
}
