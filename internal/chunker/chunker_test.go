package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustNew(t *testing.T) *Splitter {
	t.Helper()
	s, err := New(500, 50)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 500, 50, false},
		{"zero overlap", 10, 0, false},
		{"zero size", 0, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals size", 10, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplit_ShortText(t *testing.T) {
	chunks := mustNew(t).Split("abcdefghij")
	if len(chunks) != 1 || chunks[0] != "abcdefghij" {
		t.Errorf("Split() = %q, want [abcdefghij]", chunks)
	}
}

func TestSplit_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n"} {
		if chunks := mustNew(t).Split(text); len(chunks) != 0 {
			t.Errorf("Split(%q) = %q, want no chunks", text, chunks)
		}
	}
}

func TestSplit_NoSeparatorsFallsBackToCharacters(t *testing.T) {
	text := strings.Repeat("a", 1200)

	chunks := mustNew(t).Split(text)

	want := []int{500, 500, 300}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, n := range want {
		if len(chunks[i]) != n {
			t.Errorf("chunk %d length = %d, want %d", i, len(chunks[i]), n)
		}
	}
}

func TestSplit_WordsRespectSizeAndOverlap(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = fmt.Sprintf("w%08d", i)
	}
	text := strings.Join(words, " ")

	chunks := mustNew(t).Split(text)
	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want at least 4", len(chunks))
	}

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 500 {
			t.Errorf("chunk %d has %d chars, want <= 500", i, n)
		}
	}

	for i := 1; i < len(chunks); i++ {
		overlap := sharedOverlap(chunks[i-1], chunks[i])
		if overlap == 0 || overlap > 50 {
			t.Errorf("chunks %d/%d share %d chars, want 1..50", i-1, i, overlap)
		}
	}

	for _, w := range words {
		found := false
		for _, c := range chunks {
			if strings.Contains(c, w) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("word %s missing from chunks", w)
		}
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	p1 := strings.Repeat("a", 300)
	p2 := strings.Repeat("b", 300)

	chunks := mustNew(t).Split(p1 + "\n\n" + p2)

	if len(chunks) != 2 || chunks[0] != p1 || chunks[1] != p2 {
		t.Errorf("Split() = %d chunks, want the two paragraphs", len(chunks))
	}
}

func TestSplit_OversizedPieceRecurses(t *testing.T) {
	text := strings.Repeat("b", 600) + "\n\nshort"

	chunks := mustNew(t).Split(text)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %q", len(chunks), chunks)
	}
	if len(chunks[0]) != 500 || len(chunks[1]) != 150 {
		t.Errorf("chunk lengths = %d, %d, want 500, 150", len(chunks[0]), len(chunks[1]))
	}
	if chunks[2] != "short" {
		t.Errorf("last chunk = %q, want %q", chunks[2], "short")
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	text := strings.Repeat("ñ", 600)

	chunks := mustNew(t).Split(text)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 500 {
		t.Errorf("first chunk = %d runes, want 500", n)
	}
}

func TestSplit_ZeroOverlap(t *testing.T) {
	s, err := New(10, 0)
	if err != nil {
		t.Fatal(err)
	}

	chunks := s.Split(strings.Repeat("x", 25))

	want := []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}
	if strings.Join(chunks, "|") != strings.Join(want, "|") {
		t.Errorf("Split() = %q, want %q", chunks, want)
	}
}

// sharedOverlap returns the length of the longest suffix of a that is a prefix of b.
func sharedOverlap(a, b string) int {
	for n := min(len(a), len(b)); n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}
