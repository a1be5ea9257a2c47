package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autolinkhq/autolink-backend/internal/profiles"
	pkgauth "github.com/autolinkhq/autolink-backend/pkg/auth"
	"github.com/autolinkhq/autolink-backend/pkg/auth/session"
	"github.com/autolinkhq/autolink-backend/pkg/config"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

const (
	PlatformWeb    = "web"
	PlatformNative = "native"

	stateTTL           = 10 * time.Minute
	stateBytes         = 32
	webCallbackPath    = "/auth/callback"
	nativeCallbackHost = "auth/callback"
)

// Google identities map to stable user UUIDs via the account URL.
const googleAccountURLPrefix = "https://accounts.google.com/"

type identityProvider interface {
	AuthorizeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*Identity, error)
	Verify(ctx context.Context, accessToken string) (*Identity, error)
}

type profileService interface {
	Ensure(ctx context.Context, input profiles.EnsureProfileInput) (*profiles.ProfileDTO, error)
	Get(ctx context.Context, userID uuid.UUID) (*profiles.ProfileDTO, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type stateStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	OAuthStateKey(state string) string
}

// StartSignInResult carries what the client needs to open the consent screen.
type StartSignInResult struct {
	AuthorizeURL string `json:"authorize_url"`
	State        string `json:"state"`
}

// CompleteSignInInput carries the redirect parameters back from the client:
// either an authorization code, or the provider token pair some flows deliver
// in the URL fragment.
type CompleteSignInInput struct {
	State        string
	Code         string
	AccessToken  string
	RefreshToken string
}

// SessionTokens is the issued token pair plus the bootstrapped profile.
type SessionTokens struct {
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	Profile      *profiles.ProfileDTO `json:"profile"`
}

// Service exposes the sign-in lifecycle.
type Service interface {
	StartSignIn(ctx context.Context, platform string) (*StartSignInResult, error)
	CompleteSignIn(ctx context.Context, input CompleteSignInInput) (*SessionTokens, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*SessionTokens, error)
	SignOut(ctx context.Context, accessID string) error
}

type service struct {
	provider identityProvider
	profiles profileService
	sessions sessionManager
	states   stateStore
	appCfg   config.AppConfig
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

// NewService builds the auth service.
func NewService(
	provider identityProvider,
	profileSvc profileService,
	sessions sessionManager,
	states stateStore,
	appCfg config.AppConfig,
	jwtCfg config.JWTConfig,
) (Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("identity provider required")
	}
	if profileSvc == nil {
		return nil, fmt.Errorf("profile service required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if states == nil {
		return nil, fmt.Errorf("state store required")
	}
	return &service{
		provider: provider,
		profiles: profileSvc,
		sessions: sessions,
		states:   states,
		appCfg:   appCfg,
		jwtCfg:   jwtCfg,
		now:      time.Now,
	}, nil
}

func (s *service) redirectURI(platform string) (string, error) {
	switch platform {
	case PlatformWeb:
		return s.appCfg.WebOrigin + webCallbackPath, nil
	case PlatformNative:
		return s.appCfg.NativeScheme + "://" + nativeCallbackHost, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "platform must be web or native")
	}
}

// StartSignIn mints a CSRF state, remembers which platform asked, and returns
// the Google consent URL.
func (s *service) StartSignIn(ctx context.Context, platform string) (*StartSignInResult, error) {
	redirectURI, err := s.redirectURI(platform)
	if err != nil {
		return nil, err
	}

	state, err := generateState()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate sign-in state")
	}
	if err := s.states.Set(ctx, s.states.OAuthStateKey(state), platform, stateTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store sign-in state")
	}

	return &StartSignInResult{
		AuthorizeURL: s.provider.AuthorizeURL(state, redirectURI),
		State:        state,
	}, nil
}

// CompleteSignIn validates the state, resolves the Google identity (by
// exchanging the code, or by verifying a fragment-delivered access token),
// bootstraps the profile, and issues a token pair.
func (s *service) CompleteSignIn(ctx context.Context, input CompleteSignInInput) (*SessionTokens, error) {
	if input.State == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state is required")
	}
	if input.Code == "" && input.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code or provider tokens are required")
	}

	stateKey := s.states.OAuthStateKey(input.State)
	platform, err := s.states.Get(ctx, stateKey)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign-in state is expired or invalid")
	}
	// States are single-use.
	_ = s.states.Del(ctx, stateKey)

	redirectURI, err := s.redirectURI(platform)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign-in state is expired or invalid")
	}

	var identity *Identity
	if input.Code != "" {
		identity, err = s.provider.Exchange(ctx, input.Code, redirectURI)
	} else {
		// Fragment tokens skip the exchange; the access token still has
		// to resolve to a real identity at the userinfo endpoint.
		identity, err = s.provider.Verify(ctx, input.AccessToken)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "google sign-in failed")
	}

	userID := userIDForSubject(identity.Subject)
	profile, err := s.profiles.Ensure(ctx, profiles.EnsureProfileInput{
		UserID:      userID,
		Username:    identity.PreferredUsername,
		Email:       identity.Email,
		DisplayName: identity.Name,
		AvatarURL:   identity.Picture,
	})
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, profile, identity.Email)
}

// Refresh rotates the refresh session and mints a fresh access token with the
// user's current entitlement.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*SessionTokens, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefreshToken, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	profile, err := s.profiles.Get(ctx, claims.UserID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "profile no longer exists")
	}

	signed, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: profile.ID,
		Email:  claims.Email,
		IsPro:  profile.IsPro,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &SessionTokens{
		AccessToken:  signed,
		RefreshToken: newRefreshToken,
		Profile:      profile,
	}, nil
}

// SignOut revokes the refresh session tied to the access identifier.
func (s *service) SignOut(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) issueTokens(ctx context.Context, profile *profiles.ProfileDTO, email string) (*SessionTokens, error) {
	accessID := session.NewAccessID()
	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refresh session")
	}

	signed, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: profile.ID,
		Email:  email,
		IsPro:  profile.IsPro,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &SessionTokens{
		AccessToken:  signed,
		RefreshToken: refreshToken,
		Profile:      profile,
	}, nil
}

// userIDForSubject derives a stable UUID from the Google subject so repeat
// sign-ins land on the same profile row.
func userIDForSubject(subject string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(googleAccountURLPrefix+subject))
}

func generateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
