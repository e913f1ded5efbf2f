package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// productInput distinguishes a missing id/name from an empty string.
type productInput struct {
	ID   *string        `json:"id" validate:"required"`
	Name *string        `json:"name" validate:"required"`
	Data map[string]any `json:"data"`
}

func (in productInput) product() Product {
	return Product{ID: *in.ID, Name: *in.Name, Data: in.Data}
}

type replaceRequest struct {
	Products []productInput `json:"products" validate:"required,dive"`
}

func (req replaceRequest) products() []Product {
	out := make([]Product, len(req.Products))
	for i, in := range req.Products {
		out[i] = in.product()
	}
	return out
}

type detailsRequest struct {
	IDs []*string `json:"ids" validate:"required,dive,required"`
}

func (req detailsRequest) ids() []string {
	out := make([]string, len(req.IDs))
	for i, id := range req.IDs {
		out[i] = *id
	}
	return out
}

type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string { return e.detail }

// decodeRequest reads one JSON value from the body into v and validates it.
// Failures are *requestError carrying the response status.
func decodeRequest(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{
				status: http.StatusRequestEntityTooLarge,
				detail: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return &requestError{status: http.StatusUnprocessableEntity, detail: "invalid request body: " + err.Error()}
	}
	if dec.More() {
		return &requestError{status: http.StatusUnprocessableEntity, detail: "invalid request body: unexpected data after JSON value"}
	}

	if err := validate.Struct(v); err != nil {
		return &requestError{status: http.StatusUnprocessableEntity, detail: validationDetail(err)}
	}
	return nil
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+": field required")
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
