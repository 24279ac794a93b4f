package http

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/httputil"
)

var errContentType = errors.New("content type must be application/json")

// ContentTypeJSON rejects bodies that are not declared as JSON with the
// malformed-body envelope.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteError(w, r, apperrors.MalformedBody(errContentType), nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody caps request bodies at 1MB.
func limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
}
