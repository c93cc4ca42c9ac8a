package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rl1809/bizease/internal/core/domain"
)

// Response is the envelope of every reply: Detail carries a message or an error body, Data the
// affected resource.
type Response struct {
	Detail any `json:"detail,omitempty"`
	Data   any `json:"data,omitempty"`
}

const (
	msgUnauthenticated = "Authentication credentials were not provided."
	msgInternal        = "internal error"
	msgInvalidBody     = "JSON parse error."
)

// errorBody renders an error as the value of "detail" together with its HTTP status.
func errorBody(err error) (int, any) {
	var (
		validation *domain.ValidationError
		products   domain.ProductErrors
		notFound   *domain.NotFoundError
		conflict   *domain.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validationDetail(validation)
	case errors.As(err, &products):
		return http.StatusBadRequest, map[string]domain.ProductErrors{"ordered_products": products}
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Message
	case errors.As(err, &conflict):
		if conflict == domain.ErrDuplicateRequest {
			return http.StatusConflict, conflict.Message
		}
		return http.StatusBadRequest, conflict.Message
	}
	return http.StatusInternalServerError, msgInternal
}

// validationDetail flattens field errors and index-aligned list errors into one object.
func validationDetail(v *domain.ValidationError) map[string]any {
	out := make(map[string]any, len(v.Fields)+len(v.Lists))
	for field, list := range v.Lists {
		if !hasErrors(list) {
			continue
		}
		items := make([]domain.FieldErrors, len(list))
		for i, fe := range list {
			if fe == nil {
				fe = domain.FieldErrors{}
			}
			items[i] = fe
		}
		out[field] = items
	}
	for field, msgs := range v.Fields {
		out[field] = msgs
	}
	return out
}

func hasErrors(list []domain.FieldErrors) bool {
	for _, fe := range list {
		if len(fe) > 0 {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	status, detail := errorBody(err)
	writeJSON(w, status, Response{Detail: detail})
}
