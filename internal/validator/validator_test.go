package validator

import (
	"testing"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Str0ngPassword": true,
		"Aa1aaaaa":       true,
		"Aa1aaaa":        false,
		"alllower1":      false,
		"ALLUPPER1":      false,
		"NoDigitsHere":   false,
		"":               false,
	}
	for pw, want := range cases {
		assert.Equal(t, want, StrongPassword(pw), pw)
	}
}

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strongpassword"`
}

func TestRegisterTranslatesStrongPassword(t *testing.T) {
	v := govalidator.New()
	require.NoError(t, Register(v))

	err := v.Struct(signup{Email: "not-an-email", Password: "weak"})
	require.Error(t, err)

	fields := TranslateErrors(err)
	assert.Contains(t, fields["password"], "uppercase letter")
	assert.Contains(t, fields, "email")

	assert.NoError(t, v.Struct(signup{Email: "ok@shop.test", Password: "Str0ngPassword"}))
}
