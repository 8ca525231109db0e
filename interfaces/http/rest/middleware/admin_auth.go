package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"signalwatcher/pkg/common"
	pkgerrors "signalwatcher/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// AdminAuth guards operational endpoints. With a secret, the bearer token
// must be a valid HS256 JWT signed with it. Without one, production only
// requires an Authorization header and other environments pass everything.
func AdminAuth(secret string, production bool, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" && !production {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing authorization header"))
				return
			}

			if secret != "" {
				if _, err := ValidateAdminToken(header, secret); err != nil {
					common.LoggerFrom(r.Context(), logger).Warn("Rejected admin token", zap.Error(err))
					errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid authorization token").WithCause(err))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ValidateAdminToken checks an HS256 bearer token and returns its claims
func ValidateAdminToken(header, secret string) (*jwt.RegisteredClaims, error) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
