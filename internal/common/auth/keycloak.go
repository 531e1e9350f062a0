// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"job-board/internal/common/config"
	"job-board/internal/common/errors"
	commonhttp "job-board/internal/common/http"
	"job-board/internal/common/logger"
	"job-board/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const identityCachePrefix = "identity:"

// KeycloakClient verifies bearer tokens against Keycloak and drives the
// authorization-code sign-in.
type KeycloakClient struct {
	baseURL    string
	realm      string
	httpClient *commonhttp.Client
	redis      *redis.Client
	cacheTTL   time.Duration
	oauth      *oauth2.Config
	logger     logger.Logger
}

// UserInfo is the subset of the OpenID Connect userinfo response we use.
type UserInfo struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

func NewKeycloakClient(cfg config.AuthConfig, httpClient *commonhttp.Client, rdb *redis.Client, log logger.Logger) *KeycloakClient {
	baseURL := strings.TrimSuffix(cfg.Keycloak.URL, "/")
	issuer := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", baseURL, cfg.Keycloak.Realm)

	return &KeycloakClient{
		baseURL:    baseURL,
		realm:      cfg.Keycloak.Realm,
		httpClient: httpClient,
		redis:      rdb,
		cacheTTL:   config.GetSeconds(cfg.IdentityCacheTTL),
		oauth: &oauth2.Config{
			ClientID:     cfg.Keycloak.ClientID,
			ClientSecret: cfg.Keycloak.ClientSecret,
			RedirectURL:  cfg.Keycloak.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  issuer + "/auth",
				TokenURL: issuer + "/token",
			},
		},
		logger: log.WithFields(map[string]interface{}{"component": "keycloak"}),
	}
}

func (k *KeycloakClient) userInfoURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", k.baseURL, k.realm)
}

// VerifyToken resolves a bearer token to an identity, using Redis as a
// read-through cache keyed by the token hash.
func (k *KeycloakClient) VerifyToken(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, errors.NewUnauthenticatedError("missing bearer token")
	}

	cacheKey := identityCachePrefix + hashToken(token)
	if identity, ok := k.cached(ctx, cacheKey); ok {
		return identity, nil
	}

	var info UserInfo
	err := k.httpClient.GetJSON(ctx, k.userInfoURL(), map[string]string{
		"Authorization": "Bearer " + token,
	}, &info)
	if err != nil {
		var statusErr *commonhttp.StatusError
		if stderrors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			return nil, errors.NewTokenInvalidError("the access token is expired, revoked or malformed")
		}
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	if info.Sub == "" {
		return nil, errors.NewTokenInvalidError("userinfo response has no subject")
	}

	identity := &models.Identity{ID: info.Sub, Email: info.Email, Name: info.Name}
	if identity.Name == "" {
		identity.Name = info.PreferredUsername
	}

	k.store(ctx, cacheKey, identity)
	return identity, nil
}

func (k *KeycloakClient) cached(ctx context.Context, key string) (*models.Identity, bool) {
	if k.redis == nil {
		return nil, false
	}
	data, err := k.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			k.logger.Warn("identity cache read failed", map[string]interface{}{"error": err})
		}
		return nil, false
	}
	var identity models.Identity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		return nil, false
	}
	return &identity, true
}

func (k *KeycloakClient) store(ctx context.Context, key string, identity *models.Identity) {
	if k.redis == nil || k.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := k.redis.Set(ctx, key, data, k.cacheTTL).Err(); err != nil {
		k.logger.Warn("identity cache write failed", map[string]interface{}{"error": err})
	}
}

// AuthCodeURL is the provider's sign-in page for state.
func (k *KeycloakClient) AuthCodeURL(state string) string {
	return k.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (k *KeycloakClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, k.httpClient.HTTPClient())
	token, err := k.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
