package workload

import (
	"errors"
	"testing"
)

func TestNewRejectsEmpty(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "   ", "\t\n"} {
		if _, err := New(name); !errors.Is(err, ErrEmptyID) {
			t.Fatalf("name=%q: expected ErrEmptyID, got %v", name, err)
		}
	}
}

func TestNewTrimsWhitespace(t *testing.T) {
	t.Parallel()

	id, err := New("  web  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id.String() != "web" {
		t.Fatalf("expected trimmed id %q, got %q", "web", id.String())
	}
}

func TestLessOrdersLexically(t *testing.T) {
	t.Parallel()

	a, _ := New("alpha")
	b, _ := New("beta")

	if !a.Less(b) {
		t.Fatalf("expected alpha < beta")
	}

	if b.Less(a) {
		t.Fatalf("expected beta !< alpha")
	}
}
