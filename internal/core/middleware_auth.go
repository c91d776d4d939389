package core

import (
	"errors"
	"net/http"

	"pawtrack/internal/types"
)

// userIDHeader carries the caller identity. Credential verification happens
// upstream (gateway/session layer); the API trusts this header and only
// resolves it to a full user record.
const userIDHeader = "X-User-ID"

// RequireUser resolves the X-User-ID header into a user record and stores it
// in the request context. Requests without a resolvable identity are
// rejected with 401.
func (s *Server) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthMissingIdentity,
				"missing "+userIDHeader+" header",
				nil,
			))
			return
		}

		user, err := s.Users.GetByID(r.Context(), userID)
		if err != nil {
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
				// Do not distinguish unknown from missing identity.
				Error(w, r, types.NewAppError(
					types.ErrCodeAuthMissingIdentity,
					"unknown caller identity",
					nil,
				))
				return
			}
			Error(w, r, err)
			return
		}

		ctx := types.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects callers whose resolved user does not hold the admin
// role. It must run after RequireUser.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := types.GetUser(r.Context())
		if user == nil || user.Role != types.RoleAdmin {
			Error(w, r, types.NewAppError(
				types.ErrCodeAuthForbidden,
				"admin role required",
				nil,
			))
			return
		}
		next.ServeHTTP(w, r)
	})
}
