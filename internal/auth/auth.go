package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gridcast/gridcast/internal/config"
)

// tokenIssuer identifies tokens minted by this service; validation
// rejects tokens carrying any other issuer.
const tokenIssuer = "gridcast"

// AdminRole is the only role the admin API recognizes. Tokens carry it
// as a claim so future roles can gate endpoints without a wire change.
const AdminRole = "admin"

// contextKey is unexported so other packages cannot collide with it.
type contextKey string

const roleContextKey contextKey = "role"

// Claims is the token payload: the caller's role plus the registered
// expiry, issue time, and issuer fields.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken mints a signed HS256 token for the given role and
// returns it together with its expiry time.
func GenerateToken(role string, cfg config.AuthConfig) (string, time.Time, error) {
	expiresAt := time.Now().Add(cfg.TokenDuration)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
			Subject:   role,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateToken checks signature, expiry, and issuer, and returns the
// role the token carries.
func ValidateToken(tokenString string, cfg config.AuthConfig) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Role == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return claims.Role, nil
}

// VerifyPassword checks a login attempt against the configured admin
// credential. A bcrypt hash takes precedence when configured; otherwise
// the plaintext password is compared in constant time.
func VerifyPassword(cfg config.AuthConfig, password string) bool {
	if cfg.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(cfg.AdminPassword), []byte(password)) == 1
}

// HashPassword produces a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Middleware guards admin endpoints: it requires a valid Bearer token
// and stores the token's role in the request context.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS headers go out before any auth verdict so browser
			// clients can read the 401 body.
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			role, err := ValidateToken(parts[1], cfg)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleFromContext returns the role the middleware stored for the request.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey).(string)
	return role, ok
}
