package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"tokensale/core/types"
)

type contextKey string

// ContextKeyCaller holds the authenticated caller address.
const ContextKeyCaller contextKey = "gateway.caller"

// AddressClaim is the JWT claim carrying the caller's account address.
const AddressClaim = "addr"

// AuthConfig tunes bearer-token verification.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	ClockSkew  time.Duration
}

// Authenticator verifies HS256 bearer tokens and binds the caller identity
// to the request context. The engine trusts the address the gateway derives
// here; it is the caller-identity collaborator of the sale core.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
}

// NewAuthenticator constructs an authenticator from the supplied config.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		caller, err := a.verify(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(tokenString string) (types.Address, error) {
	if len(a.secret) == 0 {
		return types.Address{}, fmt.Errorf("gateway: auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if strings.TrimSpace(a.cfg.Issuer) != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return types.Address{}, err
	}
	if !token.Valid {
		return types.Address{}, fmt.Errorf("gateway: token invalid")
	}
	raw, ok := claims[AddressClaim].(string)
	if !ok {
		return types.Address{}, fmt.Errorf("gateway: missing %s claim", AddressClaim)
	}
	return types.ParseAddress(raw)
}

// IssueToken mints a short-lived bearer token for the given address. Used by
// operational tooling and tests.
func (a *Authenticator) IssueToken(addr types.Address, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("gateway: auth secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		AddressClaim: addr.Hex(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	if strings.TrimSpace(a.cfg.Issuer) != "" {
		claims["iss"] = a.cfg.Issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Caller extracts the authenticated address from the request context.
func Caller(ctx context.Context) (types.Address, bool) {
	addr, ok := ctx.Value(ContextKeyCaller).(types.Address)
	return addr, ok
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
