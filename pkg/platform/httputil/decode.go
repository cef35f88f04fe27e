package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "esgledger/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; rollover requests carry at most a few
// hundred overrides and mappings.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into dst and runs struct validation.
// Failures are CodeBadRequest errors naming the offending fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return Validate(dst)
}

// Validate runs go-playground validation tags on v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request")
	}
	fields := ValidationFields(verrs)
	keys := make([]string, 0, len(fields))
	for k, tag := range fields {
		keys = append(keys, fmt.Sprintf("%s (%s)", k, tag))
	}
	sort.Strings(keys)
	return dErrors.New(dErrors.CodeBadRequest, "invalid fields: "+strings.Join(keys, ", "))
}

// ValidationFields maps each failing field to the tag it failed.
func ValidationFields(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		out[ve.Namespace()[strings.IndexByte(ve.Namespace(), '.')+1:]] = ve.Tag()
	}
	return out
}
