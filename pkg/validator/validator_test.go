package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
)

type loginStruct struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,phone"`
	Password string `json:"password" validate:"required,password"`
	OTP      string `json:"otp" validate:"omitempty,otp"`
}

func TestValidate_Success(t *testing.T) {
	s := loginStruct{Email: "alice@example.com", Password: "secret123"}
	assert.NoError(t, Validate(s))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(loginStruct{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "phone")
	assert.Equal(t, "is required", fields["password"])
}

func TestValidate_InvalidEmail(t *testing.T) {
	err := Validate(loginStruct{Email: "not-an-email", Password: "secret123"})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid email address", valErr.Fields()["email"])
}

func TestValidate_Password(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"secret123", true},
		{"abcdefg1", true},
		{"abcdefghijklmno1", true},
		{"short1", false},
		{"abcdefghijklmnop1", false},
		{"onlyletters", false},
		{"12345678", false},
		{"has space1", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsPassword(tt.password))
		})
	}
}

func TestValidate_Phone(t *testing.T) {
	assert.NoError(t, Validate(loginStruct{Phone: "+84987654321", Password: "secret123"}))
	assert.NoError(t, Validate(loginStruct{Phone: "0987654321", Password: "secret123"}))

	err := Validate(loginStruct{Phone: "09-876", Password: "secret123"})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "phone")
}

func TestValidate_OTP(t *testing.T) {
	assert.NoError(t, Validate(loginStruct{Email: "a@b.com", Password: "secret123", OTP: "123456"}))

	err := Validate(loginStruct{Email: "a@b.com", Password: "secret123", OTP: "12a456"})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be 6 digits", valErr.Fields()["otp"])
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := Validate(loginStruct{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "field 'password'")
}

func TestTrimStrings(t *testing.T) {
	otp := " 123456 "
	s := struct {
		Email string
		OTP   *string
		Count int
	}{Email: "  a@b.com\n", OTP: &otp, Count: 3}

	TrimStrings(&s)

	assert.Equal(t, "a@b.com", s.Email)
	assert.Equal(t, "123456", *s.OTP)
	assert.Equal(t, 3, s.Count)
}

func TestTrimStrings_IgnoresNonStructs(t *testing.T) {
	s := "  x  "
	TrimStrings(&s)
	TrimStrings(nil)
	assert.Equal(t, "  x  ", s)
}

// --- DecodeAndValidate ---

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"email":"  bob@example.com ","password":"secret123"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst loginStruct
	require.NoError(t, DecodeAndValidate(r, &dst))
	assert.Equal(t, "bob@example.com", dst.Email)
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))

	var dst loginStruct
	err := DecodeAndValidate(r, &dst)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.StatusMalformedBody, appErr.Status)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedBody))
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"bob@example.com"}`))

	var dst loginStruct
	err := DecodeAndValidate(r, &dst)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "password")
}
