package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"job-board/internal/common/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const signInStatePrefix = "signin:"

// SignInRedirectURL builds the sign-in location carrying the return path,
// e.g. /sign-in?redirect_url=%2Fjobs%2F3%3Ftab%3Dapply.
func SignInRedirectURL(signInPath, returnPath string) string {
	return signInPath + "?redirect_url=" + url.QueryEscape(SafeReturnPath(returnPath))
}

// SafeReturnPath keeps only same-origin relative paths. Control characters
// are refused outright: browsers strip tab and newline, so "/\t/evil.example"
// would be followed as "//evil.example".
func SafeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	if strings.ContainsFunc(p, isControl) {
		return "/"
	}
	return p
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

type codeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// SignInFlow keeps the pending return path per state token in Redis.
type SignInFlow struct {
	provider codeExchanger
	redis    *redis.Client
	ttl      time.Duration
}

// SignInResult is returned once the provider redirects back.
type SignInResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	RedirectURL  string    `json:"redirect_url"`
}

func NewSignInFlow(provider codeExchanger, rdb *redis.Client, ttl time.Duration) *SignInFlow {
	return &SignInFlow{provider: provider, redis: rdb, ttl: ttl}
}

// Begin records returnPath under a fresh state and returns the provider URL.
func (f *SignInFlow) Begin(ctx context.Context, returnPath string) (string, error) {
	state := uuid.New().String()
	if err := f.redis.Set(ctx, signInStatePrefix+state, SafeReturnPath(returnPath), f.ttl).Err(); err != nil {
		return "", errors.NewExternalServiceError("redis", err)
	}
	return f.provider.AuthCodeURL(state), nil
}

// Complete consumes state (single use) and exchanges code.
func (f *SignInFlow) Complete(ctx context.Context, state, code string) (*SignInResult, error) {
	if state == "" || code == "" {
		return nil, errors.NewValidationFailedError("state and code are required")
	}

	returnPath, err := f.redis.GetDel(ctx, signInStatePrefix+state).Result()
	if err == redis.Nil {
		return nil, errors.NewUnauthenticatedError("unknown or expired sign-in state")
	}
	if err != nil {
		return nil, errors.NewExternalServiceError("redis", err)
	}

	token, err := f.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return &SignInResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
		RedirectURL:  returnPath,
	}, nil
}
