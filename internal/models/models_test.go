package models

import (
	"strings"
	"testing"
)

func TestAccountValidate(t *testing.T) {
	base := Account{Username: "alice", Bio: "quack", PasswordHash: "h", Salt: "s"}
	tests := []struct {
		name    string
		mutate  func(a *Account)
		wantErr bool
	}{
		{"valid", func(*Account) {}, false},
		{"empty username", func(a *Account) { a.Username = "" }, true},
		{"delimiter in username", func(a *Account) { a.Username = "al:ice" }, true},
		{"bio at limit", func(a *Account) { a.Bio = strings.Repeat("ü", MaxBioLength) }, false},
		{"bio over limit", func(a *Account) { a.Bio = strings.Repeat("x", MaxBioLength+1) }, true},
		{"multiline bio", func(a *Account) { a.Bio = "a\nb" }, true},
		{"missing salt", func(a *Account) { a.Salt = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base
			tt.mutate(&a)
			if err := a.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCaption(t *testing.T) {
	if err := ValidateCaption(""); err != nil {
		t.Errorf("empty caption: %v", err)
	}
	if err := ValidateCaption(strings.Repeat("x", MaxCaptionLength)); err != nil {
		t.Errorf("caption at limit: %v", err)
	}
	if err := ValidateCaption(strings.Repeat("x", MaxCaptionLength+1)); err == nil {
		t.Error("caption over limit accepted")
	}
	if err := ValidateCaption("a\r\nb"); err == nil {
		t.Error("multiline caption accepted")
	}
	p := Picture{ImageID: "alice_1", Owner: "alice", Caption: strings.Repeat("x", MaxCaptionLength+1)}
	if err := p.Validate(); err == nil {
		t.Error("Picture.Validate accepted long caption")
	}
}

func TestNextSequence(t *testing.T) {
	ids := []string{"alice_1", "alice_7", "alice_x", "bob_9", "alice_3"}
	if got := NextSequence("alice", ids); got != 8 {
		t.Errorf("NextSequence = %d, want 8", got)
	}
	if got := NextSequence("carol", ids); got != 1 {
		t.Errorf("NextSequence(carol) = %d, want 1", got)
	}
	if _, ok := ImageSequence("al", "alice_1"); ok {
		t.Error("ImageSequence matched a different owner")
	}
}
