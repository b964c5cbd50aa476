package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agora/internal/models"
	"agora/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const actorKey contextKey = "actor"

// Authenticator resolves bearer session tokens into users.
type Authenticator struct {
	secret []byte
	expiry time.Duration
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewAuthenticator creates the token middleware.
func NewAuthenticator(secret string, expiry time.Duration, users repositories.UserRepository, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		expiry: expiry,
		users:  users,
		logger: logger,
	}
}

// IssueToken creates a signed session token for the user.
func (a *Authenticator) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate attaches the user to the context when a valid bearer
// token is present. Requests without a token pass through anonymous.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.resolve(r.Context(), token)
		if err != nil {
			a.logger.Debug("token rejected", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), user)))
	})
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Actor(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":{"type":"UNAUTHORIZED","message":"authentication required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolve(ctx context.Context, tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("malformed claims")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed subject: %w", err)
	}
	return a.users.GetByID(ctx, userID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// WithActor stores the acting user on the context.
func WithActor(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, actorKey, user)
}

// Actor returns the acting user, or nil for anonymous requests.
func Actor(ctx context.Context) *models.User {
	user, _ := ctx.Value(actorKey).(*models.User)
	return user
}
