// Package auth guards the run-triggering route of the status API with
// HS256-signed bearer tokens.
package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"baserow-bridge/internal/common/errors"
	"baserow-bridge/internal/common/logging"
)

// Issuer is stamped on every token and required when verifying.
const Issuer = "baserow-bridge"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

// Claims are the JWT claims of an API token.
type Claims struct {
	jwt.RegisteredClaims
}

// Auth issues and verifies API tokens.
type Auth struct {
	secret []byte
	logger logging.Logger
}

// New creates an Auth signing with secret.
func New(secret string, logger logging.Logger) (*Auth, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.ConfigError(fmt.Sprintf("JWT secret must be at least %d characters", MinSecretLength))
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Auth{
		secret: []byte(secret),
		logger: logger.WithFields(logging.String("component", "auth")),
	}, nil
}

// GenerateJWT signs a token for subject that expires after ttl.
func (a *Auth) GenerateJWT(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.ValidationError("token lifetime must be positive")
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// ValidateJWT parses raw and checks its signature, issuer and expiry.
func (a *Auth) ValidateJWT(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.ValidationError("invalid token: " + err.Error())
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid "Authorization: Bearer" token.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			unauthorized(w, "authentication required")
			return
		}

		claims, err := a.ValidateJWT(strings.TrimSpace(raw))
		if err != nil {
			a.logger.Warn("Rejected API token",
				logging.String("path", r.URL.Path),
				logging.String("remote_addr", r.RemoteAddr),
				logging.Any("error", err),
			)
			unauthorized(w, "invalid token")
			return
		}

		a.logger.Debug("API token accepted", logging.String("subject", claims.Subject))
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="baserow-bridge"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
