package tokens

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewBudget_Disabled(t *testing.T) {
	for _, n := range []int{0, -1} {
		b, err := NewBudget(n)
		if err != nil {
			t.Fatalf("NewBudget(%d) error = %v", n, err)
		}
		if b != nil {
			t.Fatalf("NewBudget(%d) = %v, want nil", n, b)
		}
		got, cut := b.Truncate("anything")
		if got != "anything" || cut {
			t.Errorf("nil budget Truncate() = %q, %v", got, cut)
		}
		if b.Max() != 0 {
			t.Errorf("nil budget Max() = %d", b.Max())
		}
	}
}

func TestBudget_Truncate(t *testing.T) {
	b, err := NewBudget(16)
	if err != nil {
		t.Fatalf("NewBudget() error = %v", err)
	}

	tests := []struct {
		name    string
		input   string
		wantCut bool
	}{
		{name: "short", input: `{"full_name":"Los Angeles Lakers"}`, wantCut: false},
		{name: "long", input: strings.Repeat(`{"team":"Lakers","wins":47},`, 50), wantCut: true},
		{name: "multibyte", input: strings.Repeat("Jokić Dončić Antetokounmpo ", 40), wantCut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := b.Truncate(tt.input)
			if cut != tt.wantCut {
				t.Fatalf("cut = %v, want %v", cut, tt.wantCut)
			}
			if !cut {
				if got != tt.input {
					t.Errorf("untruncated result changed: %q", got)
				}
				return
			}
			if !strings.HasSuffix(got, TruncationMarker) {
				t.Errorf("missing truncation marker: %q", got)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncated result is not valid UTF-8: %q", got)
			}
			head := strings.TrimSuffix(got, TruncationMarker)
			if n := b.Count(head); n > 18 {
				t.Errorf("head has %d tokens, want about 16", n)
			}
			if !strings.HasPrefix(tt.input, head[:len(head)/2]) {
				t.Errorf("head is not a prefix of the input: %q", head)
			}
		})
	}
}

func TestBudget_Count(t *testing.T) {
	b, err := NewBudget(100)
	if err != nil {
		t.Fatalf("NewBudget() error = %v", err)
	}
	if n := b.Count("Hello, how are you?"); n < 4 || n > 8 {
		t.Errorf("Count() = %d, want between 4 and 8", n)
	}
}
