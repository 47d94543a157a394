package models

import (
	"regexp"
	"strings"
	"time"
)

var (
	phoneRe      = regexp.MustCompile(`^(09\d{9}|\+639\d{9})$`)
	postalCodeRe = regexp.MustCompile(`^\d{4}$`)
)

// Address is the model for the 'addresses' table.
type Address struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"userId" db:"user_id"`
	FullName   string    `json:"fullName" db:"full_name"`
	Phone      string    `json:"phone" db:"phone"`
	Street     string    `json:"street" db:"street"`
	Barangay   string    `json:"barangay" db:"barangay"`
	City       string    `json:"city" db:"city"`
	Province   string    `json:"province" db:"province"`
	PostalCode string    `json:"postalCode" db:"postal_code"`
	IsDefault  bool      `json:"isDefault" db:"is_default"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// AddressInput is the JSON body for creating or updating an address, and
// the inline address accepted at checkout.
type AddressInput struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	Barangay   string `json:"barangay"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
}

// Normalize trims every field.
func (in *AddressInput) Normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	in.Street = strings.TrimSpace(in.Street)
	in.Barangay = strings.TrimSpace(in.Barangay)
	in.City = strings.TrimSpace(in.City)
	in.Province = strings.TrimSpace(in.Province)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
}

// Validate returns the first invalid field, or nil.
func (in *AddressInput) Validate() error {
	required := []struct{ field, value string }{
		{"full_name", in.FullName},
		{"phone", in.Phone},
		{"street", in.Street},
		{"barangay", in.Barangay},
		{"city", in.City},
		{"province", in.Province},
		{"postal_code", in.PostalCode},
	}
	for _, r := range required {
		if r.value == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
	}
	if !ValidPhone(in.Phone) {
		return &ValidationError{Field: "phone", Message: "must be a PH mobile number (09XXXXXXXXX or +639XXXXXXXXX)"}
	}
	if !postalCodeRe.MatchString(in.PostalCode) {
		return &ValidationError{Field: "postal_code", Message: "must be 4 digits"}
	}
	return nil
}

// ToAddress copies the input onto a new Address owned by userID.
func (in *AddressInput) ToAddress(userID int64) *Address {
	return &Address{
		UserID:     userID,
		FullName:   in.FullName,
		Phone:      in.Phone,
		Street:     in.Street,
		Barangay:   in.Barangay,
		City:       in.City,
		Province:   in.Province,
		PostalCode: in.PostalCode,
		IsDefault:  in.IsDefault,
	}
}

// Format serializes the address into the single string snapshotted on orders.
func (a *Address) Format() string {
	var b strings.Builder
	b.WriteString(a.FullName)
	b.WriteString(" (")
	b.WriteString(a.Phone)
	b.WriteString(")\n")
	b.WriteString(a.Street)
	b.WriteString(", Brgy. ")
	b.WriteString(a.Barangay)
	b.WriteString("\n")
	b.WriteString(a.City)
	b.WriteString(", ")
	b.WriteString(a.Province)
	b.WriteString(" ")
	b.WriteString(a.PostalCode)
	return b.String()
}

// ValidPhone accepts PH mobile numbers in local or international form.
func ValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}
