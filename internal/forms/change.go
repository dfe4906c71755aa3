package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"account-console/internal/domain"
	"account-console/internal/password"
	"account-console/internal/repository"
)

// ChangeInput is the raw submission of the edit-account form. Password is
// accepted so clients can round-trip the form, but it is never applied.
type ChangeInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02"`
	IsActive  *bool  `json:"is_active"`
	IsAdmin   *bool  `json:"is_admin"`
}

// ChangeForm edits every account field except the password.
type ChangeForm struct {
	Input    ChangeInput
	Instance *domain.Account

	accounts repository.AccountRepository
	hasher   password.Hasher

	initialPassword string

	errs    Errors
	cleaned bool
	result  domain.Account
}

func NewChangeForm(accounts repository.AccountRepository, hasher password.Hasher, instance *domain.Account, input ChangeInput) *ChangeForm {
	input.Email = strings.TrimSpace(input.Email)
	input.Birthdate = strings.TrimSpace(input.Birthdate)
	return &ChangeForm{
		Input:           input,
		Instance:        instance,
		accounts:        accounts,
		hasher:          hasher,
		initialPassword: instance.PasswordHash,
	}
}

// CleanPassword discards whatever was submitted and returns the stored hash.
func CleanPassword(submitted, initial string) string {
	return initial
}

// CleanedPassword is the password hash the form would save.
func (f *ChangeForm) CleanedPassword() string {
	return CleanPassword(f.Input.Password, f.initialPassword)
}

// PasswordSummary renders the stored hash for read-only display.
func (f *ChangeForm) PasswordSummary() []password.SummaryItem {
	return f.hasher.Summary(f.initialPassword)
}

func (f *ChangeForm) IsValid(ctx context.Context) bool {
	if !f.cleaned {
		f.clean(ctx)
	}
	return len(f.errs) == 0
}

func (f *ChangeForm) Errors() Errors {
	return f.errs
}

func (f *ChangeForm) clean(ctx context.Context) {
	f.cleaned = true
	f.errs = Errors{}
	f.result = *f.Instance

	validateFields(f.Input, f.errs)

	if !f.errs.Has("birthdate") {
		date, err := domain.ParseDate(f.Input.Birthdate)
		if err != nil {
			f.errs.Add("birthdate", "Enter a valid date.")
		}
		f.result.Birthdate = date
	}

	if !f.errs.Has("email") {
		f.result.Email = domain.NormalizeEmail(f.Input.Email)
		if err := checkEmailAvailable(ctx, f.accounts, f.result.Email, f.Instance.ID); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				f.errs.Add(verr.Field, verr.Message)
			} else {
				f.errs.Add("__all__", err.Error())
			}
		}
	}

	if f.Input.IsActive != nil {
		f.result.Active = *f.Input.IsActive
	}
	if f.Input.IsAdmin != nil {
		f.result.IsAdmin = *f.Input.IsAdmin
	}
	f.result.PasswordHash = f.CleanedPassword()
}

// Save applies the cleaned values to a copy of the instance and persists it
// when commit is true.
func (f *ChangeForm) Save(ctx context.Context, commit bool) (*domain.Account, error) {
	if !f.IsValid(ctx) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, f.errs)
	}

	account := f.result
	if commit {
		if err := f.accounts.Update(ctx, &account); err != nil {
			return nil, err
		}
	}
	return &account, nil
}
