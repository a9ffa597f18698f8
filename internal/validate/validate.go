// Package validate checks structs and single values against their
// declared validator tags and reports failures as [FieldErrors].
package validate

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	err := en_translations.RegisterDefaultTranslations(validate, translator)
	if err != nil {
		panic(err)
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"mapstructure", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}

		return fld.Name
	})
}

// Struct validates the provided model against its declared tags.
func Struct(val any) error {
	return fieldErrors(validate.Struct(val), "")
}

// Var validates a single value against the given tag, reporting
// failures under field.
func Var(field string, val any, tag string) error {
	return fieldErrors(validate.Var(val, tag), field)
}

func fieldErrors(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err
	}

	var fields FieldErrors
	for _, verror := range verrors {
		name := verror.Field()
		if field != "" {
			name = field
		}
		fields = append(fields, FieldError{
			Field: name,
			Err:   customErrForTag(verror.Tag(), verror),
		})
	}

	return fields
}

// FieldError is a single failed validation.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	d, err := json.Marshal(fe)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

// Fields returns the names of every field that failed.
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for _, f := range fe {
		names = append(names, f.Field)
	}

	return names
}

func customErrForTag(tag string, verror validator.FieldError) string {
	switch tag {
	case "required":
		return "This field is required"
	default:
		msg := verror.Translate(translator)
		if msg == "" || strings.HasPrefix(msg, "Key: ") {
			return verror.Error()
		}
		return msg
	}
}
