package validation

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndValidateEmail(t *testing.T) {
	email := NormalizeEmail("  Buyer.Name+tag@Example.COM ")
	assert.Equal(t, "buyer.name+tag@example.com", email)
	assert.NoError(t, ValidateEmail(email))

	for _, bad := range []string{"", "no-at-sign", "a@b", "a@@b.com", "@example.com", "name@exa mple.com"} {
		assert.Error(t, ValidateEmail(NormalizeEmail(bad)), bad)
	}
}

func TestIsHexID(t *testing.T) {
	assert.True(t, IsHexID(strings.Repeat("a1", 10)))
	assert.True(t, IsHexID(strings.Repeat("f", 64)))

	assert.False(t, IsHexID(strings.Repeat("a", 19)))
	assert.False(t, IsHexID(strings.Repeat("a", 129)))
	assert.False(t, IsHexID(strings.Repeat("A", 32)))
	assert.True(t, IsHexID(NormalizeHexID(" "+strings.Repeat("AB", 16)+"\n")))
	assert.False(t, IsHexID(strings.Repeat("g", 32)))
}

func TestIsOTPCode(t *testing.T) {
	assert.True(t, IsOTPCode("000123"))
	assert.False(t, IsOTPCode("12345"))
	assert.False(t, IsOTPCode("1234567"))
	assert.False(t, IsOTPCode("12a456"))
	assert.False(t, IsOTPCode("١٢٣٤٥٦"))
}

func TestCustomerFields(t *testing.T) {
	assert.NoError(t, ValidatePhone("+91 98765 43210"))
	assert.Error(t, ValidatePhone("call me"))
	assert.NoError(t, ValidatePincode("560001"))
	assert.Error(t, ValidatePincode("5600"))
	assert.Error(t, ValidateCustomerName(" "))
	assert.NoError(t, ValidateExternalLink("/products/biofm"))
	assert.Error(t, ValidateExternalLink("ftp://files.example.com"))
	assert.Error(t, ValidateRating(6))
}

func TestRegisterBindings(t *testing.T) {
	type req struct {
		Code      string `validate:"required,otpcode"`
		Challenge string `validate:"required,hexid"`
	}

	v := validator.New()
	require.NoError(t, register(v))

	assert.NoError(t, v.Struct(req{Code: "123456", Challenge: strings.Repeat("ab", 16)}))
	assert.Error(t, v.Struct(req{Code: "12345", Challenge: strings.Repeat("ab", 16)}))
	assert.Error(t, v.Struct(req{Code: "123456", Challenge: "short"}))
	assert.NoError(t, v.Struct(req{Code: "123456", Challenge: strings.Repeat("AB", 16)}))

	type emailReq struct {
		Email     string `validate:"otpemail"`
		Challenge string `validate:"hexid"`
	}
	err := v.Struct(emailReq{Email: "nope", Challenge: "short"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "otpemail", verrs[0].Tag())
	assert.NoError(t, v.Struct(emailReq{Email: " Buyer@Example.com ", Challenge: strings.Repeat("ab", 16)}))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Chemsus2026Admin"))

	for _, bad := range []string{
		"Short1A",
		"alllowercase2026",
		"ALLUPPERCASE2026",
		"NoDigitsAtAllHere",
		"With Space 2026A",
	} {
		assert.Error(t, ValidatePassword(bad), bad)
	}
}
