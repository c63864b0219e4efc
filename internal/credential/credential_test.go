package credential

import (
	"encoding/base64"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("salt is not base64: %v", err)
	}
	if len(raw) != SaltSize {
		t.Errorf("salt length = %d, want %d", len(raw), SaltSize)
	}
	b, _ := GenerateSalt()
	if a == b {
		t.Error("two salts should differ")
	}
}

func TestHashDeterministic(t *testing.T) {
	salt, _ := GenerateSalt()
	h1, err := Hash("duck123", salt)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, _ := Hash("duck123", salt)
	if h1 != h2 {
		t.Errorf("hash not deterministic: %q != %q", h1, h2)
	}
}

func TestHashKnownVector(t *testing.T) {
	// 16 zero bytes of salt followed by "pw".
	salt := base64.StdEncoding.EncodeToString(make([]byte, SaltSize))
	got, err := Hash("pw", salt)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !LooksHashed(got, salt) {
		t.Errorf("digest %q does not look hashed", got)
	}
	if len(got) != 44 {
		t.Errorf("digest length = %d, want 44", len(got))
	}
}

func TestVerify(t *testing.T) {
	passwords := []string{"duck123", "", "p@ss:word;with, delimiters", "ünïcødé"}
	for _, p := range passwords {
		digest, salt, err := New(p)
		if err != nil {
			t.Fatalf("New(%q): %v", p, err)
		}
		if !Verify(p, digest, salt) {
			t.Errorf("Verify(%q) = false, want true", p)
		}
		if Verify(p+"x", digest, salt) {
			t.Errorf("Verify(%q+x) = true, want false", p)
		}
	}
}

func TestVerifyBadSalt(t *testing.T) {
	if Verify("pw", "anything", "%%%not-base64") {
		t.Error("undecodable salt must not verify")
	}
}

func TestLooksHashed(t *testing.T) {
	digest, salt, _ := New("pw")
	cases := []struct {
		digest, salt string
		want         bool
	}{
		{digest, salt, true},
		{"pw", "bio", false},
		{digest, "", false},
		{"", salt, false},
		{salt, digest, false},
	}
	for _, c := range cases {
		if got := LooksHashed(c.digest, c.salt); got != c.want {
			t.Errorf("LooksHashed(%q, %q) = %v, want %v", c.digest, c.salt, got, c.want)
		}
	}
}
