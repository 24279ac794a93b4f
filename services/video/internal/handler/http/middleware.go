package http

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/ncsyvn/microservices-go/pkg/errors"
	"github.com/ncsyvn/microservices-go/pkg/httputil"
)

var errContentType = errors.New("content type must be application/json")

// ContentTypeJSON rejects POST bodies declared as anything but JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteError(w, r, apperrors.MalformedBody(errContentType), nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
