package admin

import (
	"context"
	"fmt"
	"math"
	"strings"

	"account-console/internal/domain"
	"account-console/internal/forms"
	"account-console/internal/password"
	"account-console/internal/repository"
)

// AccountModel is the registry name of the account model.
const AccountModel = "account"

const defaultListPerPage = 100

// Fieldset groups form fields under an optional heading.
type Fieldset struct {
	Name    string   `json:"name,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Fields  []string `json:"fields"`
}

// Form is what the console submits: the creation form for new accounts,
// the change form for existing ones.
type Form interface {
	IsValid(ctx context.Context) bool
	Errors() forms.Errors
	Save(ctx context.Context, commit bool) (*domain.Account, error)
}

// AccountAdmin configures how accounts are listed, searched and edited.
type AccountAdmin struct {
	ListDisplay      []string
	ListFilter       []string
	SearchFields     []string
	Ordering         []string
	FilterHorizontal []string
	ListPerPage      int

	Fieldsets    []Fieldset
	AddFieldsets []Fieldset

	accounts repository.AccountRepository
	hasher   password.Hasher
}

func NewAccountAdmin(accounts repository.AccountRepository, hasher password.Hasher) *AccountAdmin {
	return &AccountAdmin{
		ListDisplay:  []string{"email", "birthdate", "is_admin"},
		ListFilter:   []string{"is_admin"},
		SearchFields: []string{"email"},
		Ordering:     []string{"email"},
		ListPerPage:  defaultListPerPage,
		Fieldsets: []Fieldset{
			{Fields: []string{"email", "password"}},
			{Name: "Personal info", Fields: []string{"birthdate"}},
			{Name: "Permissions", Fields: []string{"is_admin"}},
		},
		AddFieldsets: []Fieldset{
			{Classes: []string{"wide"}, Fields: []string{"email", "birthdate", "password1", "password2"}},
		},
		accounts: accounts,
		hasher:   hasher,
	}
}

var _ ModelAdmin = (*AccountAdmin)(nil)

func (a *AccountAdmin) ModelName() string         { return AccountModel }
func (a *AccountAdmin) VerboseNamePlural() string { return "Accounts" }

// GetFieldsets returns the add layout when obj is nil.
func (a *AccountAdmin) GetFieldsets(obj *domain.Account) []Fieldset {
	if obj == nil {
		return a.AddFieldsets
	}
	return a.Fieldsets
}

// GetForm decodes a submission into the creation form when obj is nil and
// into the change form otherwise.
func (a *AccountAdmin) GetForm(obj *domain.Account, decode func(any) error) (Form, error) {
	if obj == nil {
		var input forms.CreationInput
		if err := decode(&input); err != nil {
			return nil, fmt.Errorf("decode creation form: %w", err)
		}
		return forms.NewCreationForm(a.accounts, a.hasher, input), nil
	}
	var input forms.ChangeInput
	if err := decode(&input); err != nil {
		return nil, fmt.Errorf("decode change form: %w", err)
	}
	return forms.NewChangeForm(a.accounts, a.hasher, obj, input), nil
}

// SetPasswordForm builds the dedicated password flow for obj.
func (a *AccountAdmin) SetPasswordForm(setter forms.PasswordSetter, obj *domain.Account, input forms.SetPasswordInput) *forms.SetPasswordForm {
	return forms.NewSetPasswordForm(setter, obj, input)
}

// ChangelistParams are the query string options of the changelist.
type ChangelistParams struct {
	Query   string
	IsAdmin *bool
	Page    int
}

// Row is one changelist line, with values in ListDisplay order.
type Row struct {
	ID     int64 `json:"id"`
	Values []any `json:"values"`
}

type FilterChoice struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

type Filter struct {
	Field   string         `json:"field"`
	Title   string         `json:"title"`
	Choices []FilterChoice `json:"choices"`
}

// Changelist is one rendered page of the account list.
type Changelist struct {
	Columns  []Column `json:"columns"`
	Rows     []Row    `json:"rows"`
	Filters  []Filter `json:"filters"`
	Query    string   `json:"q,omitempty"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	NumPages int      `json:"num_pages"`
	PerPage  int      `json:"per_page"`
}

type Column struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// Query translates changelist params into a repository query without paging.
func (a *AccountAdmin) Query(params ChangelistParams) repository.AccountQuery {
	return repository.AccountQuery{
		Search:  strings.TrimSpace(params.Query),
		IsAdmin: params.IsAdmin,
		OrderBy: a.Ordering,
	}
}

// Changelist renders one page of accounts matching params. Pages past the
// end are served as the last page.
func (a *AccountAdmin) Changelist(ctx context.Context, params ChangelistParams) (*Changelist, error) {
	perPage := a.ListPerPage
	if perPage <= 0 {
		perPage = defaultListPerPage
	}
	page := min(max(params.Page, 1), math.MaxInt/perPage)

	query := a.Query(params)
	query.Limit = perPage
	query.Offset = (page - 1) * perPage

	accounts, total, err := a.accounts.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if numPages := max((total+perPage-1)/perPage, 1); page > numPages {
		page = numPages
		query.Offset = (page - 1) * perPage
		if accounts, total, err = a.accounts.List(ctx, query); err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
	}

	cl := &Changelist{
		Columns:  a.Columns(),
		Rows:     make([]Row, 0, len(accounts)),
		Filters:  a.filters(params),
		Query:    query.Search,
		Total:    total,
		Page:     page,
		NumPages: max((total+perPage-1)/perPage, 1),
		PerPage:  perPage,
	}
	for i := range accounts {
		cl.Rows = append(cl.Rows, a.Row(&accounts[i]))
	}
	return cl, nil
}

// Columns returns the ListDisplay fields with their labels.
func (a *AccountAdmin) Columns() []Column {
	cols := make([]Column, 0, len(a.ListDisplay))
	for _, field := range a.ListDisplay {
		cols = append(cols, Column{Field: field, Label: Label(field)})
	}
	return cols
}

// Row projects account onto the ListDisplay columns.
func (a *AccountAdmin) Row(account *domain.Account) Row {
	values := make([]any, 0, len(a.ListDisplay))
	for _, field := range a.ListDisplay {
		values = append(values, fieldValue(account, field))
	}
	return Row{ID: account.ID, Values: values}
}

func (a *AccountAdmin) filters(params ChangelistParams) []Filter {
	filters := make([]Filter, 0, len(a.ListFilter))
	for _, field := range a.ListFilter {
		if field != "is_admin" {
			continue
		}
		filters = append(filters, Filter{
			Field: field,
			Title: "By " + strings.ToLower(Label(field)),
			Choices: []FilterChoice{
				{Label: "All", Value: "", Selected: params.IsAdmin == nil},
				{Label: "Yes", Value: "true", Selected: params.IsAdmin != nil && *params.IsAdmin},
				{Label: "No", Value: "false", Selected: params.IsAdmin != nil && !*params.IsAdmin},
			},
		})
	}
	return filters
}

// DetailField is one labelled value on the detail view.
type DetailField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Value    any    `json:"value"`
	ReadOnly bool   `json:"read_only,omitempty"`
	HelpText string `json:"help_text,omitempty"`
}

type DetailFieldset struct {
	Name    string        `json:"name,omitempty"`
	Classes []string      `json:"classes,omitempty"`
	Fields  []DetailField `json:"fields"`
}

// Detail is the change view of one account, or the empty add view.
type Detail struct {
	ID        int64            `json:"id,omitempty"`
	Title     string           `json:"title"`
	Fieldsets []DetailFieldset `json:"fieldsets"`
}

const passwordHelpText = "Raw passwords are not stored, so there is no way to see this account's password. Use the set-password form to change it."

// Detail renders the fieldsets of obj. A nil obj yields the add layout with empty values.
func (a *AccountAdmin) Detail(obj *domain.Account) *Detail {
	d := &Detail{Title: "Add account"}
	if obj != nil {
		d.ID = obj.ID
		d.Title = "Change account " + obj.String()
	}

	for _, fs := range a.GetFieldsets(obj) {
		out := DetailFieldset{Name: fs.Name, Classes: fs.Classes, Fields: make([]DetailField, 0, len(fs.Fields))}
		for _, field := range fs.Fields {
			df := DetailField{Name: field, Label: Label(field)}
			switch {
			case obj == nil:
				df.Value = ""
			case field == "password":
				df.Value = a.hasher.Summary(obj.PasswordHash)
				df.ReadOnly = true
				df.HelpText = passwordHelpText
			default:
				df.Value = fieldValue(obj, field)
			}
			out.Fields = append(out.Fields, df)
		}
		d.Fieldsets = append(d.Fieldsets, out)
	}
	return d
}

var labels = map[string]string{
	"email":      "Email address",
	"birthdate":  "Date of birth",
	"is_active":  "Active",
	"is_admin":   "Administrator",
	"password":   "Password",
	"password1":  "Password",
	"password2":  "Password confirmation",
	"last_login": "Last login",
}

// Label returns the human readable name of an account field.
func Label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return strings.ReplaceAll(field, "_", " ")
}

func fieldValue(account *domain.Account, field string) any {
	switch field {
	case "id":
		return account.ID
	case "email":
		return account.Email
	case "birthdate":
		return account.Birthdate.Format(domain.DateLayout)
	case "is_active":
		return account.Active
	case "is_admin":
		return account.IsAdmin
	case "last_login":
		if account.LastLogin == nil {
			return nil
		}
		return account.LastLogin.Format("2006-01-02 15:04:05")
	default:
		return nil
	}
}
