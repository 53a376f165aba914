package validators

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldsError lists every field of a request that failed validation, by
// its JSON name
type FieldsError struct {
	Fields []string
}

func (e *FieldsError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}

			return name
		})

		validate.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
			return EmailValidator(fl.Field().String()) == nil
		})

		validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return PasswordValidator(fl.Field().String()) == nil
		})
	})

	return validate
}

// Struct validates s using its `validate` tags. Failures are reported as a
// *FieldsError naming each offending field once, in declaration order.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fe := &FieldsError{}
	seen := map[string]bool{}

	for _, v := range verrs {
		if seen[v.Field()] {
			continue
		}

		seen[v.Field()] = true
		fe.Fields = append(fe.Fields, v.Field())
	}

	return fe
}
