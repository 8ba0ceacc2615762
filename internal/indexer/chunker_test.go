package indexer

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/devflow/internal/models"
)

func TestChunker_Split(t *testing.T) {
	c, err := NewChunker(5, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := c.Split("the quick brown fox jumps over the lazy dog")
	want := []string{"the quick brown fox jumps", "jumps over the lazy dog", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %q, want %q", got, want)
	}
}

func TestChunker_SplitShortText(t *testing.T) {
	c, _ := NewChunker(5, 1)
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"fewer words", "a b  c", []string{"a b c"}},
		{"exactly size", "a b c d e", []string{"a b c d e"}},
		{"empty", "   \n\t  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Split(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestChunker_Coverage(t *testing.T) {
	words := make([]string, 137)
	for i := range words {
		words[i] = "w" + strings.Repeat("x", i%7) + string(rune('a'+i%26))
	}
	text := strings.Join(words, " ")
	for _, cfg := range [][2]int{{10, 0}, {10, 3}, {7, 6}, {50, 49}, {200, 20}} {
		c, err := NewChunker(cfg[0], cfg[1])
		if err != nil {
			t.Fatal(err)
		}
		chunks := c.Split(text)
		seen := make(map[int]bool)
		step := cfg[0] - cfg[1]
		for ci, ch := range chunks {
			n := len(strings.Fields(ch))
			if n > cfg[0] {
				t.Errorf("size=%d overlap=%d: chunk %d has %d words", cfg[0], cfg[1], ci, n)
			}
			for j := 0; j < n; j++ {
				seen[ci*step+j] = true
			}
		}
		for i := range words {
			if !seen[i] {
				t.Errorf("size=%d overlap=%d: word %d not covered", cfg[0], cfg[1], i)
			}
		}
	}
}

func TestNewChunker_Invalid(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{0, 0}, {-1, 0}, {5, 5}, {5, 6}, {5, -1},
	}
	for _, tt := range tests {
		_, err := NewChunker(tt.size, tt.overlap)
		if !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("NewChunker(%d, %d) err = %v, want ErrConfiguration", tt.size, tt.overlap, err)
		}
	}
}

func TestPreprocess(t *testing.T) {
	if Preprocess("  a  b \n\t c ") != "a b c" {
		t.Error("expected trimmed and collapsed spaces")
	}
}
