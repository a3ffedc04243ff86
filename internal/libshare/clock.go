package libshare

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so expiry logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// TokenSource produces the opaque strings handed out to anonymous callers:
// link tokens and audit codes. Tokens must be unguessable, so the real
// implementation draws from crypto/rand.
type TokenSource interface {
	// Token returns a new link token.
	Token() string
	// Code returns a new short verification code.
	Code() string
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	linkTokenLength = 24
	auditCodeLength = 6
)

// RandomTokenSource generates tokens and codes from crypto/rand.
type RandomTokenSource struct{}

func (RandomTokenSource) Token() string { return randomString(linkTokenLength) }
func (RandomTokenSource) Code() string  { return randomString(auditCodeLength) }

func randomString(n int) string {
	max := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform's entropy source
			// is broken; there is no useful recovery.
			panic(err)
		}
		b[i] = tokenAlphabet[v.Int64()]
	}
	return string(b)
}
