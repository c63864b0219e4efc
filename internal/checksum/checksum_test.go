package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("") is a well known value.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != want {
		t.Errorf("Sum(nil) = %q, want %q", got, want)
	}
}

func TestShort(t *testing.T) {
	s := Short("alice; bob; ; 2024-01-02 03:04:05; FOLLOW")
	if len(s) != ShortLen {
		t.Fatalf("len = %d, want %d", len(s), ShortLen)
	}
	if s != Short("alice; bob; ; 2024-01-02 03:04:05; FOLLOW") {
		t.Error("Short is not deterministic")
	}
	if s == Short("alice; bob; ; 2024-01-02 03:04:06; FOLLOW") {
		t.Error("different inputs should give different ids")
	}
}
