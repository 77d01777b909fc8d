package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"canvasdesk/internal/domain"
	"canvasdesk/internal/domain/models"
)

// JWKSVerifier implements JWTVerifier with keys from the identity provider's
// JWKS endpoint.
type JWKSVerifier struct {
	keyfunc jwt.Keyfunc
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier that fetches public keys from jwksURL.
// keyfunc caches the keys and refreshes them based on HTTP cache headers.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return newVerifier(jwks.Keyfunc, logger), nil
}

func newVerifier(kf jwt.Keyfunc, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{keyfunc: kf, logger: logger}
}

// VerifyToken validates a token and extracts the owner claims.
func (v *JWKSVerifier) VerifyToken(tokenString string) (*models.OwnerClaims, error) {
	// Only asymmetric algorithms; prevents algorithm confusion
	token, err := jwt.ParseWithClaims(tokenString, &models.OwnerClaims{}, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
	)
	if err != nil {
		v.logger.Debug("token parse failed", "error", err)
		return nil, domain.ErrUnauthorized
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.OwnerClaims)
	if !ok {
		v.logger.Error("failed to extract claims from token")
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	// Anonymous identities get the device-local workspace instead
	if claims.Role != "authenticated" || claims.IsAnonymous {
		v.logger.Debug("token is not for an authenticated owner", "role", claims.Role, "owner_id", claims.Subject)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close is a no-op: keyfunc v3 manages its own refresh goroutine lifetime
// through the context it was created with.
func (v *JWKSVerifier) Close() error {
	v.logger.Info("JWT verifier closed")
	return nil
}
