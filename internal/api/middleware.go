/**
 * @description
 * This file contains the middleware for caller identity. Callers assert
 * their identity with the X-Account-No header (validated upstream by the
 * gateway); the middleware parses it into the request context so handlers
 * can enforce account ownership.
 *
 * @dependencies
 * - context, net/http, strconv: Standard Go libraries.
 */

package api

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const callerAccountKey contextKey = "callerAccountNo"

// CallerIdentity parses the X-Account-No header, when present, into the
// request context. Absence is not an error here; handlers that require an
// identity reject the request themselves.
func CallerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Account-No"); raw != "" {
			accountNo, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, `{"error": "invalid X-Account-No header"}`, http.StatusBadRequest)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), callerAccountKey, accountNo))
		}
		next.ServeHTTP(w, r)
	})
}

// CallerAccountNo retrieves the caller's asserted account number from the
// request context.
func CallerAccountNo(ctx context.Context) (int64, bool) {
	accountNo, ok := ctx.Value(callerAccountKey).(int64)
	return accountNo, ok
}
