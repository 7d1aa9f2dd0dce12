package session

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Gate is the admin check: a shared static email or code. It is not a
// credential system.
type Gate struct {
	email    string
	codeHash []byte
}

func NewGate(email, code string) (*Gate, error) {
	g := &Gate{email: strings.ToLower(strings.TrimSpace(email))}
	if code != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin code: %w", err)
		}
		g.codeHash = h
	}
	return g, nil
}

func (g *Gate) Email() string { return g.email }

// Check accepts the admin email (case-insensitive) or the admin code.
func (g *Gate) Check(input string) bool {
	if input == "" {
		return false
	}
	if g.email != "" && strings.ToLower(input) == g.email {
		return true
	}
	if g.codeHash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.codeHash, []byte(input)) == nil
}
