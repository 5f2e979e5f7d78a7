package api

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/FACorreiaa/go-identity-authority/internal/types"
)

// CodeLength is the number of digits in every one-time code.
const CodeLength = 6

var (
	passwordPattern = regexp.MustCompile(`^[\x21-\x7E]{8,}$`)
	codePattern     = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, CodeLength))
)

// NormalizeEmail lowercases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("email is not a valid address")
	}
	return nil
}

// ValidatePassword requires at least 8 printable characters with a lower case
// letter, an upper case letter and a digit.
func ValidatePassword(password string) error {
	if !passwordPattern.MatchString(password) ||
		!strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz") ||
		!strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") ||
		!strings.ContainsAny(password, "0123456789") {
		return errors.New("password must be at least 8 characters with upper case, lower case and a digit")
	}
	return nil
}

func validateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("code must be %d digits", CodeLength)
	}
	return nil
}

func validateProfile(p types.UpdateProfileParams) error {
	if p.Age != nil && (*p.Age < 18 || *p.Age > 60) {
		return errors.New("age must be between 18 and 60")
	}
	if p.Gender != nil && !p.Gender.Valid() {
		return errors.New("gender must be male or female")
	}
	if p.FirstName != nil && (len(*p.FirstName) < 2 || len(*p.FirstName) > 50) {
		return errors.New("firstName must be 2 to 50 characters")
	}
	if p.LastName != nil && (len(*p.LastName) < 2 || len(*p.LastName) > 50) {
		return errors.New("lastName must be 2 to 50 characters")
	}
	return nil
}

// SignUpRequest represents the expected JSON body for registration.
type SignUpRequest struct {
	Email           string `json:"email" example:"jane.doe@example.com"`
	Password        string `json:"password" example:"Str0ngPass"`
	ConfirmPassword string `json:"cPassword" example:"Str0ngPass"` // Must equal password.
	types.UpdateProfileParams
}

func (r SignUpRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.Password != r.ConfirmPassword {
		return errors.New("cPassword must match password")
	}
	return validateProfile(r.UpdateProfileParams)
}

// CodeRequest confirms an email, a password reset or a two-factor login.
type CodeRequest struct {
	Email string `json:"email" example:"jane.doe@example.com"`
	Code  string `json:"code" example:"123456"`
}

func (r CodeRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validateCode(r.Code)
}

// EmailRequest asks for a fresh code to be sent to an address.
type EmailRequest struct {
	Email string `json:"email" example:"jane.doe@example.com"`
}

func (r EmailRequest) Validate() error { return validateEmail(r.Email) }

type SignInRequest struct {
	Email    string `json:"email" example:"jane.doe@example.com"`
	Password string `json:"password" example:"Str0ngPass"`
}

func (r SignInRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// GoogleSignInRequest carries the OAuth access token obtained by the client.
type GoogleSignInRequest struct {
	AccessToken string `json:"accessToken" example:"ya29.a0Af..."`
}

func (r GoogleSignInRequest) Validate() error {
	if strings.TrimSpace(r.AccessToken) == "" {
		return errors.New("accessToken is required")
	}
	return nil
}

type ResetPasswordRequest struct {
	Email           string `json:"email" example:"jane.doe@example.com"`
	Code            string `json:"code" example:"123456"`
	Password        string `json:"password" example:"N3wStr0ngPass"`
	ConfirmPassword string `json:"cPassword" example:"N3wStr0ngPass"`
}

func (r ResetPasswordRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := validateCode(r.Code); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.Password != r.ConfirmPassword {
		return errors.New("cPassword must match password")
	}
	return nil
}

type UpdatePasswordRequest struct {
	OldPassword     string `json:"oldPassword" example:"Str0ngPass"`
	Password        string `json:"password" example:"N3wStr0ngPass"`
	ConfirmPassword string `json:"cPassword" example:"N3wStr0ngPass"`
}

func (r UpdatePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return errors.New("oldPassword is required")
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.Password != r.ConfirmPassword {
		return errors.New("cPassword must match password")
	}
	if r.Password == r.OldPassword {
		return errors.New("new password must differ from the old one")
	}
	return nil
}

type UpdateEmailRequest struct {
	Password string `json:"password" example:"Str0ngPass"`
	Email    string `json:"email" example:"jane.new@example.com"`
}

func (r UpdateEmailRequest) Validate() error {
	if r.Password == "" {
		return errors.New("password is required")
	}
	return validateEmail(r.Email)
}

// OTPRequest carries only a code; the user comes from the session.
type OTPRequest struct {
	Code string `json:"code" example:"123456"`
}

func (r OTPRequest) Validate() error { return validateCode(r.Code) }

type PasswordRequest struct {
	Password string `json:"password" example:"Str0ngPass"`
}

func (r PasswordRequest) Validate() error {
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

type UpdateProfileRequest struct {
	types.UpdateProfileParams
}

func (r UpdateProfileRequest) Validate() error { return validateProfile(r.UpdateProfileParams) }

type ProfileImageRequest struct {
	FileName    string `json:"fileName" example:"avatar.png"`
	ContentType string `json:"contentType" example:"image/png"`
}

func (r ProfileImageRequest) Validate() error {
	if strings.TrimSpace(r.FileName) == "" || strings.ContainsAny(r.FileName, "/\\") {
		return errors.New("fileName is required and must not contain path separators")
	}
	if !strings.HasPrefix(r.ContentType, "image/") {
		return errors.New("contentType must be an image type")
	}
	return nil
}

// ProfileImageResponse is a presigned PUT target for the client upload.
type ProfileImageResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key" example:"identity-authority/users/d290f1ee/2c1b_avatar.png"`
	Method    string `json:"method" example:"PUT"`
}

// Response represents a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success" example:"true"`                           // Indicates if the operation was successful.
	Message string `json:"message,omitempty" example:"Operation successful"` // Optional success message.
	Error   string `json:"error,omitempty" example:"Resource not found"`     // Optional error message.
}
