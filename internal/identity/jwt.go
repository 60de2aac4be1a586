package identity

import (
	"context"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"gatekeeper/internal/core"
	"gatekeeper/pkg/errors"
)

// JWTConfig configures bearer-token identity resolution
type JWTConfig struct {
	// Secret for HS256/HS512 validation
	Secret string `yaml:"secret"`
	// Issuer is the expected token issuer (optional)
	Issuer string `yaml:"issuer"`
	// SubjectClaim is the claim containing the user id (default: sub)
	SubjectClaim string `yaml:"subjectClaim"`
	// HeaderName is the header to extract the token from (default: Authorization)
	HeaderName string `yaml:"headerName"`
	// Scheme is the auth scheme (default: Bearer)
	Scheme string `yaml:"scheme"`
}

// JWTProvider extracts a user id from a signed bearer token
type JWTProvider struct {
	config JWTConfig
	secret []byte
	logger *slog.Logger
}

// NewJWTProvider creates a JWT identity provider
func NewJWTProvider(config JWTConfig, logger *slog.Logger) (*JWTProvider, error) {
	if config.Secret == "" {
		return nil, errors.NewError(errors.ErrorTypeInternal, "jwt identity requires a secret")
	}
	if config.SubjectClaim == "" {
		config.SubjectClaim = "sub"
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.Scheme == "" {
		config.Scheme = "Bearer"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTProvider{
		config: config,
		secret: []byte(config.Secret),
		logger: logger.With("component", "identity"),
	}, nil
}

// UserID parses the bearer token and returns its subject. Invalid or
// missing tokens yield an anonymous request rather than an error; rejecting
// bad credentials is the business layer's job.
func (p *JWTProvider) UserID(ctx context.Context, req core.Request) (string, bool) {
	raw := p.extract(req.Headers())
	if raw == "" {
		return "", false
	}

	token, err := jwt.Parse(raw, p.keyFunc, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		p.logger.Debug("invalid bearer token", "error", err)
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}

	if p.config.Issuer != "" {
		issuer, _ := claims["iss"].(string)
		if issuer != p.config.Issuer {
			p.logger.Debug("token issuer mismatch", "issuer", issuer)
			return "", false
		}
	}

	subject, _ := claims[p.config.SubjectClaim].(string)
	if subject == "" {
		return "", false
	}
	return subject, true
}

func (p *JWTProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	return p.secret, nil
}

// extract pulls the raw token out of the configured header
func (p *JWTProvider) extract(headers map[string][]string) string {
	values, ok := headers[p.config.HeaderName]
	if !ok {
		return ""
	}
	for _, header := range values {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 {
			continue
		}
		if !strings.EqualFold(parts[0], p.config.Scheme) {
			continue
		}
		if token := strings.TrimSpace(parts[1]); token != "" {
			return token
		}
	}
	return ""
}
