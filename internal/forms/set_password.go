package forms

import (
	"context"
	"errors"
	"fmt"

	"account-console/internal/domain"
)

// PasswordSetter changes an account password through the dedicated flow.
type PasswordSetter interface {
	SetPassword(ctx context.Context, id int64, password string) error
}

// SetPasswordInput is the raw submission of the admin set-password form.
type SetPasswordInput struct {
	Password1 string `json:"password1" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
}

// SetPasswordForm replaces an account password after confirmation.
type SetPasswordForm struct {
	Input   SetPasswordInput
	Account *domain.Account

	setter  PasswordSetter
	errs    Errors
	cleaned bool
}

func NewSetPasswordForm(setter PasswordSetter, account *domain.Account, input SetPasswordInput) *SetPasswordForm {
	return &SetPasswordForm{Input: input, Account: account, setter: setter}
}

func (f *SetPasswordForm) IsValid() bool {
	if !f.cleaned {
		f.cleaned = true
		f.errs = Errors{}
		validateFields(f.Input, f.errs)
		checkPasswordLength(f.errs, "password1", f.Input.Password1)
		if _, err := CleanPassword2(f.Input.Password1, f.Input.Password2); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				f.errs.Add(verr.Field, verr.Message)
			}
		}
	}
	return len(f.errs) == 0
}

func (f *SetPasswordForm) Errors() Errors {
	return f.errs
}

func (f *SetPasswordForm) Save(ctx context.Context) error {
	if !f.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidForm, f.errs)
	}
	return f.setter.SetPassword(ctx, f.Account.ID, f.Input.Password1)
}
