package domain

import "strings"

// Register statuses. A user signs up through steps one to three; a user who
// has confirmed a password-reset OTP moves to RegisterStatusOTPVerified until
// the new password is set.
const (
	RegisterStepOne           = 1
	RegisterStepTwo           = 2
	RegisterStatusNormal      = 3
	RegisterStatusOTPVerified = 4
)

// User is a persisted credential. Users are never hard-deleted.
type User struct {
	ID                  string
	Email               string
	Phone               string
	PasswordHash        string
	IsActive            bool
	IsDeleted           bool
	GroupID             string
	RegisterStatus      int
	OTP                 string
	OTPTTL              int64
	ForceChangePassword bool
	PasswordChangedAt   int64
	CreatedAt           int64
	ModifiedAt          int64
}

// OTPExpired reports whether the stored OTP is past its ttl at now (epoch seconds).
func (u *User) OTPExpired(now int64) bool {
	return u.OTPTTL < now
}

// OTPMatches reports whether otp equals the stored, non-empty OTP.
func (u *User) OTPMatches(otp string) bool {
	return u.OTP != "" && u.OTP == otp
}

// Schema returns the public view of the user.
func (u *User) Schema() UserSchema {
	return UserSchema{
		ID:         u.ID,
		Email:      u.Email,
		Phone:      u.Phone,
		CreatedAt:  u.CreatedAt,
		ModifiedAt: u.ModifiedAt,
		IsActive:   u.IsActive,
	}
}

// UserSchema is the user representation returned to clients.
type UserSchema struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	CreatedAt  int64  `json:"created_date"`
	ModifiedAt int64  `json:"modified_date"`
	IsActive   bool   `json:"is_active"`
}

// AuthResult is a user schema with a freshly issued token pair.
type AuthResult struct {
	UserSchema
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AlternatePhone converts between the international (+84...) and national
// (0...) forms of a phone number. Numbers too short to convert are returned
// unchanged.
func AlternatePhone(phone string) string {
	if strings.HasPrefix(phone, "+") {
		if len(phone) < 3 {
			return phone
		}
		return "0" + phone[3:]
	}
	if phone == "" {
		return phone
	}
	return "+84" + phone[1:]
}
