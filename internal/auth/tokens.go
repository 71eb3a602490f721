package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const Issuer = "researchmind"

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RevocationStore is the subset of redis used for token revocation.
type RevocationStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// TokenVerifier validates HS256 access tokens and resolves them to a user id.
type TokenVerifier struct {
	secret  []byte
	rdb     RevocationStore
	maxLife time.Duration
	now     func() time.Time
}

// NewTokenVerifier returns a verifier for secret. rdb may be nil, which
// disables revocation checks.
func NewTokenVerifier(secret string, rdb RevocationStore) (*TokenVerifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("ACCESS_SECRET must be at least 32 characters")
	}
	return &TokenVerifier{secret: []byte(secret), rdb: rdb, maxLife: 24 * time.Hour, now: time.Now}, nil
}

// Verify returns the user id carried by tokenString or ErrUnauthenticated.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", apperr.ErrUnauthenticated)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(v.now))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", apperr.ErrUnauthenticated)
	}
	if claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: token has no expiry", apperr.ErrUnauthenticated)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrUnauthenticated)
	}

	if v.rdb != nil {
		if revoked, err := v.revoked(ctx, claims, userID); err != nil {
			return "", fmt.Errorf("%w: revocation check failed: %v", apperr.ErrUnavailable, err)
		} else if revoked {
			return "", fmt.Errorf("%w: token revoked", apperr.ErrUnauthenticated)
		}
	}
	return userID, nil
}

func (v *TokenVerifier) revoked(ctx context.Context, claims *Claims, userID string) (bool, error) {
	if claims.ID != "" {
		n, err := v.rdb.Exists(ctx, "revoked:"+claims.ID).Result()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}

	// tokens issued before an account-wide revocation are rejected
	cutoff, err := v.rdb.Get(ctx, "revoked_user:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ts, err := strconv.ParseInt(cutoff, 10, 64)
	if err != nil {
		return false, nil
	}
	return claims.IssuedAt == nil || claims.IssuedAt.Unix() <= ts, nil
}

// Issue signs an access token for userID valid for ttl.
func (v *TokenVerifier) Issue(userID string, ttl time.Duration) (string, time.Time, error) {
	now := v.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// RevokeToken rejects the token with the given id until ttl passes.
func (v *TokenVerifier) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if v.rdb == nil {
		return nil
	}
	return v.rdb.Set(ctx, "revoked:"+jti, 1, ttl).Err()
}

// RevokeAllUserTokens rejects every token issued to userID up to now.
func (v *TokenVerifier) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if v.rdb == nil {
		return nil
	}
	return v.rdb.Set(ctx, "revoked_user:"+userID, v.now().Unix(), v.maxLife).Err()
}
