package contact

import (
	"fmt"
	"strings"

	"bamikavision/i18n"
)

// Field error codes.
const (
	CodeRequired = "required"
	CodeEmail    = "email"
	CodeMin      = "min"
	CodeMax      = "max"
	CodeCaptcha  = "captcha"
	CodeTaken    = "taken"
	CodeInvalid  = "invalid"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Param   int    `json:"-"`
	Message string `json:"message"`
}

// ValidationError is returned when input is rejected. Nothing has been stored.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Code)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Has reports whether field was rejected with code.
func (e *ValidationError) Has(field, code string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Code == code {
			return true
		}
	}
	return false
}

// Localized returns the field errors with messages in lang.
func (e *ValidationError) Localized(lang string) []FieldError {
	out := make([]FieldError, len(e.Fields))
	for i, f := range e.Fields {
		f.Message = localize(lang, f)
		out[i] = f
	}
	return out
}

var messageKeys = map[string]string{
	"name/" + CodeRequired:     "NameRequired",
	"name/" + CodeMax:          "NameTooLong",
	"email/" + CodeRequired:    "EmailRequired",
	"email/" + CodeEmail:       "EmailInvalid",
	"email/" + CodeMax:         "EmailTooLong",
	"message/" + CodeRequired:  "MessageRequired",
	"message/" + CodeMin:       "MessageTooShort",
	"message/" + CodeMax:       "MessageTooLong",
	"captcha/" + CodeCaptcha:   "CaptchaInvalid",
	"username/" + CodeRequired: "UsernameRequired",
	"username/" + CodeTaken:    "UsernameAlreadyExists",
	"password/" + CodeMin:      "PasswordTooShort",
	"role/" + CodeInvalid:      "InvalidRole",
}

func localize(lang string, f FieldError) string {
	key, ok := messageKeys[f.Field+"/"+f.Code]
	if !ok {
		return fmt.Sprintf("%s: %s", f.Field, f.Code)
	}
	if f.Param > 0 {
		return i18n.Tf(lang, key, f.Param)
	}
	return i18n.T(lang, key)
}
