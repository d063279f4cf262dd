package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports the first case field that failed validation,
// addressed by its JSON path.
type ValidationError struct {
	Field string
	Tag   string
	Param string
}

func (e *ValidationError) Error() string {
	switch e.Tag {
	case "gte":
		return fmt.Sprintf("%s must be >= %s", e.Field, e.Param)
	case "lte":
		return fmt.Sprintf("%s must be <= %s", e.Field, e.Param)
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Tag)
	}
}

var caseValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
})

// ValidateCase checks the numeric bounds of a case: sufficiency, threshold
// overrides and evidence confidences within [0,1], media hits non-negative.
// Missing values are allowed; evaluators substitute defaults for them.
func ValidateCase(in *CaseInput) error {
	err := caseValidator().Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return &ValidationError{Field: field, Tag: fe.Tag(), Param: fe.Param()}
}
