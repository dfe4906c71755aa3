package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-console/internal/domain"
	"account-console/internal/password"
	"account-console/internal/repository"
)

// CreationInput is the raw submission of the add-account form.
type CreationInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02"`
	Password1 string `json:"password1" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
}

// CreationForm collects a new account and a password entered twice.
type CreationForm struct {
	Input CreationInput

	accounts repository.AccountRepository
	hasher   password.Hasher

	errs      Errors
	cleaned   bool
	email     string
	birthdate time.Time
}

func NewCreationForm(accounts repository.AccountRepository, hasher password.Hasher, input CreationInput) *CreationForm {
	input.Email = strings.TrimSpace(input.Email)
	input.Birthdate = strings.TrimSpace(input.Birthdate)
	return &CreationForm{
		Input:    input,
		accounts: accounts,
		hasher:   hasher,
	}
}

// CleanPassword2 rejects two non-empty passwords that differ and returns the
// confirmation. Missing values are left to required-field validation.
func CleanPassword2(password1, password2 string) (string, error) {
	if password1 != "" && password2 != "" && password1 != password2 {
		return "", &domain.ValidationError{Field: "password2", Message: msgPasswordMismatch}
	}
	return password2, nil
}

// IsValid cleans the submission once and reports whether it has no errors.
func (f *CreationForm) IsValid(ctx context.Context) bool {
	if !f.cleaned {
		f.clean(ctx)
	}
	return len(f.errs) == 0
}

// Errors returns the field errors found by IsValid.
func (f *CreationForm) Errors() Errors {
	return f.errs
}

func (f *CreationForm) clean(ctx context.Context) {
	f.cleaned = true
	f.errs = Errors{}

	validateFields(f.Input, f.errs)

	if !f.errs.Has("birthdate") {
		date, err := domain.ParseDate(f.Input.Birthdate)
		if err != nil {
			f.errs.Add("birthdate", "Enter a valid date.")
		}
		f.birthdate = date
	}

	if !f.errs.Has("email") {
		f.email = domain.NormalizeEmail(f.Input.Email)
		if err := checkEmailAvailable(ctx, f.accounts, f.email, 0); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				f.errs.Add(verr.Field, verr.Message)
			} else {
				f.errs.Add("__all__", err.Error())
			}
		}
	}

	checkPasswordLength(f.errs, "password1", f.Input.Password1)
	if _, err := CleanPassword2(f.Input.Password1, f.Input.Password2); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			f.errs.Add(verr.Field, verr.Message)
		}
	}
}

// Save builds the account with a hashed password1 and persists it only when
// commit is true. The account is returned either way.
func (f *CreationForm) Save(ctx context.Context, commit bool) (*domain.Account, error) {
	if !f.IsValid(ctx) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, f.errs)
	}

	account := domain.NewAccount(f.email, f.birthdate)
	hash, err := f.hasher.Hash(f.Input.Password1)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = hash

	if commit {
		if _, err := f.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// checkEmailAvailable fails when email belongs to an account other than exceptID.
func checkEmailAvailable(ctx context.Context, accounts repository.AccountRepository, email string, exceptID int64) error {
	existing, err := accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check email: %w", err)
	}
	if existing.ID != exceptID {
		return &domain.ValidationError{Field: "email", Message: msgEmailTaken}
	}
	return nil
}
