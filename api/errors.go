package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/query"
	"github.com/jacentio/stratum/store"
)

// errBadRequest marks malformed request bodies and unparsable queries.
var errBadRequest = errors.New("api: bad request")

// classify maps a domain failure to an HTTP status and a reason string.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrStoreNotFound), errors.Is(err, store.ErrRowNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrStoreExists), errors.Is(err, store.ErrRowExists),
		errors.Is(err, store.ErrUnresolvedConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrBadDefinition),
		errors.Is(err, query.ErrEmptyQuery), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
