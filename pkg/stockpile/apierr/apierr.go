// Package apierr renders request validation failures as
// {"error": "Validation failed", "details": [{field, message}]}.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResponse is the 400 body for validation failures.
type ValidationResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

func init() {
	// Report json names ("minStockLevel") instead of Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}

// Validation writes a 400 with the given field details.
func Validation(c *gin.Context, details ...FieldError) {
	if details == nil {
		details = []FieldError{}
	}
	c.JSON(http.StatusBadRequest, ValidationResponse{Error: "Validation failed", Details: details})
}

// Field writes a 400 for a single field.
func Field(c *gin.Context, field, message string) {
	Validation(c, FieldError{Field: field, Message: message})
}

// Bind writes a 400 describing a ShouldBindJSON failure.
func Bind(c *gin.Context, err error) {
	Validation(c, Details(err)...)
}

// Details converts a binding error into field details.
func Details(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return out
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()}}
	}
	return []FieldError{{Field: "body", Message: "invalid JSON body"}}
}

func message(fe validator.FieldError) string {
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		numeric = true
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		if numeric {
			return fmt.Sprintf("must be %s or greater", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max", "lte":
		if numeric {
			return fmt.Sprintf("must be %s or less", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
