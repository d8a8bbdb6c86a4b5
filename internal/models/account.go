package models

import "time"

// Account is a credentials-registered user, keyed by normalized email.
type Account struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"` // Never exposed
	CreatedAt    time.Time `db:"created_at"`
}

// PublicIdentity is what a successful sign-in hands to the session layer.
type PublicIdentity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identity strips the verifier from an account.
func (a *Account) Identity() *PublicIdentity {
	return &PublicIdentity{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
	}
}
