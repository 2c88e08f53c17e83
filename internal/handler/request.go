package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/josh-kwaku/bankcards-api/internal/auth"
	"github.com/josh-kwaku/bankcards-api/internal/domain"
)

const maxBodyBytes = 1 << 20

func actingUser(r *http.Request) (uuid.UUID, *AppError) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}
	return userID, nil
}

// pathID parses a uuid path segment. A malformed id cannot name an existing
// resource, so it is reported with notFound.
func pathID(r *http.Request, name string, notFound *AppError) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	return true
}

// pageFromQuery reads limit and offset. Absent values take the defaults from
// domain.Page; present values must be non-negative integers.
func pageFromQuery(r *http.Request) (domain.Page, []FieldError) {
	var (
		page domain.Page
		errs []FieldError
	)
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = append(errs, FieldError{Field: "limit", Message: "must be a positive integer"})
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: "offset", Message: "must be a non-negative integer"})
		}
		page.Offset = n
	}
	return page.Normalize(), errs
}
