package types

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type Provider string

const (
	ProviderSystem Provider = "system"
	ProviderGoogle Provider = "google"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) Valid() bool { return g == GenderMale || g == GenderFemale }

// User is the identity record. Pointer fields are nullable columns.
type User struct {
	ID                  uuid.UUID  `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Email               string     `json:"email" example:"jane.doe@example.com"`
	PasswordHash        *string    `json:"-"`                              // bcrypt hash; nil is never produced, google users get an unusable one.
	Role                Role       `json:"role" example:"user"`            // user | admin
	Provider            Provider   `json:"provider" example:"system"`      // system | google
	Confirmed           bool       `json:"confirmed"`                      // Email ownership proven.
	FirstName           *string    `json:"firstName,omitempty" example:"Jane"`
	LastName            *string    `json:"lastName,omitempty" example:"Doe"`
	Age                 *int       `json:"age,omitempty" example:"30"`
	Phone               *string    `json:"phone,omitempty"`
	Address             *string    `json:"address,omitempty"`
	Gender              *Gender    `json:"gender,omitempty" example:"female"`
	NewEmail            *string    `json:"newEmail,omitempty"`             // Pending email change target.
	NewEmailRequestedAt *time.Time `json:"newEmailRequestedAt,omitempty"`
	TwoFactorEnabled    bool       `json:"twoFactorEnabled"`
	ChangeCredentials   *time.Time `json:"-"`                              // Tokens issued before this instant are dead.
	DeletedAt           *time.Time `json:"deletedAt,omitempty"`
	DeletedBy           *uuid.UUID `json:"deletedBy,omitempty"`
	RestoredAt          *time.Time `json:"restoredAt,omitempty"`
	RestoredBy          *uuid.UUID `json:"restoredBy,omitempty"`
	ProfileImage        *string    `json:"profileImage,omitempty"`         // Object storage key.
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Frozen reports whether the account is soft-deleted.
func (u *User) Frozen() bool { return u.DeletedAt != nil }

// UpdateProfileParams lists the self-service profile fields. Nil means untouched.
type UpdateProfileParams struct {
	FirstName *string `json:"firstName,omitempty" example:"Jane"`
	LastName  *string `json:"lastName,omitempty" example:"Doe"`
	Age       *int    `json:"age,omitempty" example:"30"`
	Phone     *string `json:"phone,omitempty" example:"+351910000000"`
	Address   *string `json:"address,omitempty" example:"Rua Augusta 1, Lisboa"`
	Gender    *Gender `json:"gender,omitempty" example:"female"`
}

type ChallengePurpose string

const (
	PurposeConfirmEmail   ChallengePurpose = "confirm-email"
	PurposeResetPassword  ChallengePurpose = "reset-password"
	PurposeChangeEmail    ChallengePurpose = "change-email"
	PurposeTwoFactorSetup ChallengePurpose = "2fa-setup"
	PurposeTwoFactorLogin ChallengePurpose = "2fa-login"
)

func (p ChallengePurpose) Valid() bool {
	switch p {
	case PurposeConfirmEmail, PurposeResetPassword, PurposeChangeEmail, PurposeTwoFactorSetup, PurposeTwoFactorLogin:
		return true
	}
	return false
}

// Challenge is a pending one-time code for a single (user, purpose).
type Challenge struct {
	UserID    uuid.UUID
	Purpose   ChallengePurpose
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
