package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("len(ids)=%d", len(ids))
	}
	if ids[0] != tokenCLS {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != tokenSEP {
		t.Errorf("expected SEP after two words, got %d", ids[3])
	}
	if attn[0] != 1 || attn[3] != 1 || attn[4] != 0 {
		t.Errorf("unexpected attention mask %v", attn)
	}
	lower, _, _ := tok.Tokenize("hello WORLD", 10)
	if lower[1] != ids[1] || lower[2] != ids[2] {
		t.Error("tokenizer should be case-insensitive")
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("a b c d e f g h i j k l", 5)
	if len(ids) != 5 {
		t.Fatalf("len=%d", len(ids))
	}
	for i, v := range attn {
		if v != 1 {
			t.Errorf("attn[%d]=%d, want 1", i, v)
		}
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h <= 0 {
		t.Error("hash should be positive")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}
