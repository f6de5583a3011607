// Package secrets generates the random values handed out to people: invite
// link tokens and temporary passwords.
package secrets

import (
	"encoding/hex"
	"fmt"

	"github.com/gorilla/securecookie"
)

// TokenBytes is the entropy of an invite token (64 hex chars).
const TokenBytes = 32

// TempPasswordBytes is the entropy of a temporary password (24 hex chars).
const TempPasswordBytes = 12

func randomHex(n int) (string, error) {
	b := securecookie.GenerateRandomKey(n)
	if b == nil {
		return "", fmt.Errorf("generate %d random bytes: entropy source unavailable", n)
	}
	return hex.EncodeToString(b), nil
}

// Token returns a fresh invite token.
func Token() (string, error) { return randomHex(TokenBytes) }

// TempPassword returns a fresh temporary password.
func TempPassword() (string, error) { return randomHex(TempPasswordBytes) }
