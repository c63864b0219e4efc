package codec

import (
	"strings"

	"github.com/starford/quackstagram/internal/credential"
	"github.com/starford/quackstagram/internal/models"
)

const kindAccount = "account"

// AccountRecord is one decoded credentials line: either a
// LegacyCredential or a HashedCredential.
type AccountRecord interface {
	Username() string
	accountRecord()
}

// LegacyCredential is the pre-migration shape "username:password:bio".
type LegacyCredential struct {
	User     string
	Password string
	Bio      string
}

func (c LegacyCredential) Username() string { return c.User }
func (LegacyCredential) accountRecord()      {}

// Upgrade hashes the plaintext password under a fresh salt.
func (c LegacyCredential) Upgrade() (HashedCredential, error) {
	digest, salt, err := credential.New(c.Password)
	if err != nil {
		return HashedCredential{}, err
	}
	return HashedCredential{User: c.User, Hash: digest, Salt: salt, Bio: c.Bio}, nil
}

// HashedCredential is the current shape "username:passwordHash:salt:bio".
type HashedCredential struct {
	User string
	Hash string
	Salt string
	Bio  string
}

func (c HashedCredential) Username() string { return c.User }
func (HashedCredential) accountRecord()      {}

// Account converts the record to a domain account with zero counters.
func (c HashedCredential) Account() models.Account {
	return models.Account{Username: c.User, Bio: c.Bio, PasswordHash: c.Hash, Salt: c.Salt}
}

// Verify checks password against the stored digest.
func (c HashedCredential) Verify(password string) bool {
	return credential.Verify(password, c.Hash, c.Salt)
}

// EncodeAccount renders a in the current credentials format.
func EncodeAccount(a models.Account) string {
	return a.Username + ":" + a.PasswordHash + ":" + a.Salt + ":" + a.Bio
}

// DecodeAccount parses a credentials line. The bio is the last field and may
// itself contain ':'. A four-field line whose hash and salt fields have the
// shape of a digest and a salt is current; any other line with at least three
// fields is legacy.
func DecodeAccount(line string) (AccountRecord, error) {
	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 3 {
		return nil, malformed(kindAccount, line, "fewer than 3 fields")
	}
	if parts[0] == "" {
		return nil, malformed(kindAccount, line, "empty username")
	}
	if len(parts) == 4 && credential.LooksHashed(parts[1], parts[2]) {
		return HashedCredential{User: parts[0], Hash: parts[1], Salt: parts[2], Bio: parts[3]}, nil
	}
	legacy := strings.SplitN(line, ":", 3)
	if legacy[1] == "" {
		return nil, malformed(kindAccount, line, "empty password")
	}
	return LegacyCredential{User: legacy[0], Password: legacy[1], Bio: legacy[2]}, nil
}

// AccountKey returns the username a credentials line belongs to without
// decoding the rest of it.
func AccountKey(line string) string {
	name, _, _ := strings.Cut(line, ":")
	return name
}
