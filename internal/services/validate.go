package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

// NewValidator returns a validator that names fields by their form tag and
// knows the "condition" and "category" tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
		_, ok := models.LookupCondition(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := models.LookupCategory(fl.Field().String())
		return ok
	})
	return v
}

// checkForm validates form and translates failures through messages, keyed
// by "field.tag" with "field" as the fallback for any tag.
func checkForm(v *validator.Validate, form any, messages map[string]string) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := make(errs.FieldErrors, 0, len(ve))
	for _, fe := range ve {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg, ok = messages[fe.Field()]
		}
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		out = append(out, &errs.ValidationError{Field: fe.Field(), Message: msg})
	}
	return out
}
