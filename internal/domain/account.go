package domain

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// UnusablePasswordPrefix marks a PasswordHash that no password can match.
const UnusablePasswordPrefix = "!"

// Account is a user identified by email address.
type Account struct {
	ID           int64
	Email        string
	Birthdate    time.Time
	Active       bool
	IsAdmin      bool
	PasswordHash string
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount returns an active, non-administrator account with a normalized email.
func NewAccount(email string, birthdate time.Time) *Account {
	return &Account{
		Email:     NormalizeEmail(email),
		Birthdate: TruncateDate(birthdate),
		Active:    true,
	}
}

// IsStaff reports whether the account may use the management console.
// Every administrator is staff.
func (a *Account) IsStaff() bool {
	return a.IsAdmin
}

// HasPerm reports whether the account holds the named permission.
// Every account holds every permission; console access is gated by IsStaff.
func (a *Account) HasPerm(perm string) bool {
	return true
}

// HasModulePerms reports whether the account may view the given app.
func (a *Account) HasModulePerms(app string) bool {
	return true
}

// HasUsablePassword reports whether some password could authenticate the account.
func (a *Account) HasUsablePassword() bool {
	return a.PasswordHash != "" && !strings.HasPrefix(a.PasswordHash, UnusablePasswordPrefix)
}

func (a *Account) String() string {
	return a.Email
}

// NormalizeEmail canonicalizes an email address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
}

// TruncateDate drops the clock part of t, keeping its calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
