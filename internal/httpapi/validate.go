package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	webster "github.com/babymilooo/webster-backend"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// Every failure wraps webster.ErrInvalidInput so it is answered with 400.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", webster.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON body", webster.ErrInvalidInput)
	}
	return h.validateStruct(dst)
}

func (h *Handlers) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", webster.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+": "+msgForTag(fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("%w: %s", webster.ErrInvalidInput, strings.Join(msgs, "; "))
}

func msgForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", param)
	case "max":
		return fmt.Sprintf("must not exceed %s characters", param)
	default:
		return "failed rule " + tag
	}
}

// newValidator reports JSON field names instead of Go field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
