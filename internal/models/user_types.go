package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is the model for the 'users' table.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`
	Phone        string    `json:"phone" db:"phone"`
	IsAdmin      bool      `json:"isAdmin" db:"is_admin"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Username
}

// Password length bounds. bcrypt only hashes the first 72 bytes and
// rejects anything longer.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// CheckPassword reports a ValidationError on field when plaintext is too
// short or too long to hash.
func CheckPassword(field, plaintext string) error {
	switch {
	case len([]rune(plaintext)) < MinPasswordLength:
		return &ValidationError{Field: field, Message: "must be at least 8 characters"}
	case len(plaintext) > MaxPasswordBytes:
		return &ValidationError{Field: field, Message: "must be at most 72 bytes"}
	}
	return nil
}

// Password Helper
type Password struct {
	Plaintext *string
	Hash      string
}

// Set hashes plaintextPassword with the given bcrypt cost.
func (p *Password) Set(plaintextPassword string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), cost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
