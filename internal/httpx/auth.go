package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Identity is asserted by the gateway in front of this service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type callerKey struct{}

// requireCaller rejects requests without a user id and stores the caller in
// the request context.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			writeFail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		c := orders.Caller{UserID: id, Role: orders.RoleUser}
		if orders.Role(strings.ToLower(r.Header.Get(HeaderUserRole))) == orders.RoleAdmin {
			c.Role = orders.RoleAdmin
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, c)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r).Role != orders.RoleAdmin {
			writeFail(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(r *http.Request) orders.Caller {
	c, _ := r.Context().Value(callerKey{}).(orders.Caller)
	return c
}
