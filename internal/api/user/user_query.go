package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

// queryOptions controls the soft-delete filter added to every statement.
type queryOptions struct {
	paranoid    bool
	onlyDeleted bool
}

type QueryOption func(*queryOptions)

// WithDeleted turns paranoid filtering off so frozen users are visible too.
func WithDeleted() QueryOption {
	return func(o *queryOptions) { o.paranoid = false }
}

// OnlyDeleted restricts the statement to frozen users.
func OnlyDeleted() QueryOption {
	return func(o *queryOptions) {
		o.paranoid = false
		o.onlyDeleted = true
	}
}

func buildOptions(opts []QueryOption) queryOptions {
	o := queryOptions{paranoid: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Filter selects users. Zero fields are ignored; an empty filter is rejected
// by the repository so a bug can never update or delete every row.
type Filter struct {
	ID            *uuid.UUID
	Email         *string
	Confirmed     *bool
	Provider      *types.Provider
	PendingEmail  *string    // new_email equals
	DeletedByNot  *uuid.UUID // deleted_by IS DISTINCT FROM
	HasNewEmail   bool
	TwoFactorOnly bool
}

func ByID(id uuid.UUID) Filter { return Filter{ID: &id} }

func ByEmail(email string) Filter { return Filter{Email: &email} }

func (f Filter) Empty() bool {
	return f.ID == nil && f.Email == nil && f.PendingEmail == nil
}

// where renders the WHERE clause starting at placeholder $argID.
func (f Filter) where(o queryOptions, argID int) (string, []any) {
	var clauses []string
	var args []any

	if f.ID != nil {
		clauses = append(clauses, fmt.Sprintf("id = $%d", argID))
		args = append(args, *f.ID)
		argID++
	}
	if f.Email != nil {
		clauses = append(clauses, fmt.Sprintf("lower(email) = lower($%d)", argID))
		args = append(args, *f.Email)
		argID++
	}
	if f.PendingEmail != nil {
		clauses = append(clauses, fmt.Sprintf("lower(new_email) = lower($%d)", argID))
		args = append(args, *f.PendingEmail)
		argID++
	}
	if f.Confirmed != nil {
		clauses = append(clauses, fmt.Sprintf("confirmed = $%d", argID))
		args = append(args, *f.Confirmed)
		argID++
	}
	if f.Provider != nil {
		clauses = append(clauses, fmt.Sprintf("provider = $%d", argID))
		args = append(args, string(*f.Provider))
		argID++
	}
	if f.DeletedByNot != nil {
		clauses = append(clauses, fmt.Sprintf("deleted_by IS DISTINCT FROM $%d", argID))
		args = append(args, *f.DeletedByNot)
		argID++
	}
	if f.HasNewEmail {
		clauses = append(clauses, "new_email IS NOT NULL")
	}
	if f.TwoFactorOnly {
		clauses = append(clauses, "two_factor_enabled")
	}

	switch {
	case o.onlyDeleted:
		clauses = append(clauses, "deleted_at IS NOT NULL")
	case o.paranoid:
		clauses = append(clauses, "deleted_at IS NULL")
	}

	return strings.Join(clauses, " AND "), args
}

// Column is one of the user columns an Update may touch.
type Column string

const (
	ColEmail               Column = "email"
	ColPasswordHash        Column = "password_hash"
	ColRole                Column = "role"
	ColConfirmed           Column = "confirmed"
	ColFirstName           Column = "first_name"
	ColLastName            Column = "last_name"
	ColAge                 Column = "age"
	ColPhone               Column = "phone"
	ColAddress             Column = "address"
	ColGender              Column = "gender"
	ColNewEmail            Column = "new_email"
	ColNewEmailRequestedAt Column = "new_email_requested_at"
	ColTwoFactorEnabled    Column = "two_factor_enabled"
	ColDeletedAt           Column = "deleted_at"
	ColDeletedBy           Column = "deleted_by"
	ColRestoredAt          Column = "restored_at"
	ColRestoredBy          Column = "restored_by"
	ColProfileImage        Column = "profile_image"
)

type assignment struct {
	col   Column
	value any
	unset bool
}

// Update is an ordered list of column assignments.
type Update struct {
	assignments []assignment
	bump        *time.Time
}

func NewUpdate() *Update { return &Update{} }

func (u *Update) Set(col Column, value any) *Update {
	u.assignments = append(u.assignments, assignment{col: col, value: value})
	return u
}

// Unset writes NULL to col.
func (u *Update) Unset(col Column) *Update {
	u.assignments = append(u.assignments, assignment{col: col, unset: true})
	return u
}

// BumpCredentials moves change_credentials forward to at. It never moves it back.
func (u *Update) BumpCredentials(at time.Time) *Update {
	u.bump = &at
	return u
}

func (u *Update) Empty() bool { return u == nil || (len(u.assignments) == 0 && u.bump == nil) }

// set renders the SET clause. updated_at is always refreshed.
func (u *Update) set(argID int) (string, []any, int) {
	var setClauses []string
	var args []any

	for _, a := range u.assignments {
		if a.unset {
			setClauses = append(setClauses, fmt.Sprintf("%s = NULL", a.col))
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", a.col, argID))
		args = append(args, a.value)
		argID++
	}
	if u.bump != nil {
		setClauses = append(setClauses, fmt.Sprintf("change_credentials = GREATEST(change_credentials, $%d)", argID))
		args = append(args, *u.bump)
		argID++
	}
	setClauses = append(setClauses, "updated_at = now()")

	return strings.Join(setClauses, ", "), args, argID
}

// ProfileUpdate converts profile params into an Update.
func ProfileUpdate(p types.UpdateProfileParams) *Update {
	u := NewUpdate()
	if p.FirstName != nil {
		u.Set(ColFirstName, *p.FirstName)
	}
	if p.LastName != nil {
		u.Set(ColLastName, *p.LastName)
	}
	if p.Age != nil {
		u.Set(ColAge, *p.Age)
	}
	if p.Phone != nil {
		u.Set(ColPhone, *p.Phone)
	}
	if p.Address != nil {
		u.Set(ColAddress, *p.Address)
	}
	if p.Gender != nil {
		u.Set(ColGender, string(*p.Gender))
	}
	return u
}

// Matches evaluates the filter against an in-memory record with the same
// semantics as the rendered WHERE clause.
func (f Filter) Matches(u *types.User, opts ...QueryOption) bool {
	o := buildOptions(opts)
	switch {
	case o.onlyDeleted && u.DeletedAt == nil:
		return false
	case o.paranoid && u.DeletedAt != nil:
		return false
	}
	if f.ID != nil && *f.ID != u.ID {
		return false
	}
	if f.Email != nil && !strings.EqualFold(*f.Email, u.Email) {
		return false
	}
	if f.PendingEmail != nil && (u.NewEmail == nil || !strings.EqualFold(*f.PendingEmail, *u.NewEmail)) {
		return false
	}
	if f.Confirmed != nil && *f.Confirmed != u.Confirmed {
		return false
	}
	if f.Provider != nil && *f.Provider != u.Provider {
		return false
	}
	if f.DeletedByNot != nil && u.DeletedBy != nil && *u.DeletedBy == *f.DeletedByNot {
		return false
	}
	if f.HasNewEmail && u.NewEmail == nil {
		return false
	}
	if f.TwoFactorOnly && !u.TwoFactorEnabled {
		return false
	}
	return true
}

// Apply writes the update onto an in-memory record with the same semantics
// as the rendered SET clause.
func (u *Update) Apply(dst *types.User, now time.Time) {
	for _, a := range u.assignments {
		applyAssignment(dst, a)
	}
	if u.bump != nil && (dst.ChangeCredentials == nil || u.bump.After(*dst.ChangeCredentials)) {
		at := *u.bump
		dst.ChangeCredentials = &at
	}
	dst.UpdatedAt = now
}

func applyAssignment(dst *types.User, a assignment) {
	str := func() *string {
		if a.unset {
			return nil
		}
		s := fmt.Sprint(a.value)
		return &s
	}
	tm := func() *time.Time {
		if a.unset {
			return nil
		}
		t := a.value.(time.Time)
		return &t
	}
	id := func() *uuid.UUID {
		if a.unset {
			return nil
		}
		v := a.value.(uuid.UUID)
		return &v
	}

	switch a.col {
	case ColEmail:
		dst.Email = *str()
	case ColPasswordHash:
		dst.PasswordHash = str()
	case ColRole:
		dst.Role = types.Role(*str())
	case ColConfirmed:
		dst.Confirmed = !a.unset && a.value.(bool)
	case ColFirstName:
		dst.FirstName = str()
	case ColLastName:
		dst.LastName = str()
	case ColAge:
		if a.unset {
			dst.Age = nil
		} else {
			age := a.value.(int)
			dst.Age = &age
		}
	case ColPhone:
		dst.Phone = str()
	case ColAddress:
		dst.Address = str()
	case ColGender:
		if s := str(); s != nil {
			g := types.Gender(*s)
			dst.Gender = &g
		} else {
			dst.Gender = nil
		}
	case ColNewEmail:
		dst.NewEmail = str()
	case ColNewEmailRequestedAt:
		dst.NewEmailRequestedAt = tm()
	case ColTwoFactorEnabled:
		dst.TwoFactorEnabled = !a.unset && a.value.(bool)
	case ColDeletedAt:
		dst.DeletedAt = tm()
	case ColDeletedBy:
		dst.DeletedBy = id()
	case ColRestoredAt:
		dst.RestoredAt = tm()
	case ColRestoredBy:
		dst.RestoredBy = id()
	case ColProfileImage:
		dst.ProfileImage = str()
	}
}
