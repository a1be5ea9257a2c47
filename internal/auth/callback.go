package auth

import (
	"net/url"
	"strings"

	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

// MsgSignInCancelled is returned when the user dismisses the Google consent
// screen instead of completing it.
const MsgSignInCancelled = "Google sign-in was cancelled."

// CallbackResult holds whatever the OAuth redirect carried: an authorization
// code in the query, or a token pair in the fragment.
type CallbackResult struct {
	Code         string
	State        string
	AccessToken  string
	RefreshToken string
}

// ParseCallback extracts sign-in parameters from the redirect URL the client
// received. Providers return the code in the query string; some flows deliver
// tokens directly in the URL fragment instead.
func ParseCallback(rawURL string) (*CallbackResult, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback url is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid callback url")
	}

	query := parsed.Query()
	fragment, fragErr := url.ParseQuery(parsed.Fragment)
	if fragErr != nil {
		fragment = url.Values{}
	}

	if oauthErr := firstNonEmpty(query.Get("error"), fragment.Get("error")); oauthErr != "" {
		if oauthErr == "access_denied" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgSignInCancelled)
		}
		description := firstNonEmpty(query.Get("error_description"), fragment.Get("error_description"))
		if description == "" {
			description = oauthErr
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, description)
	}

	result := &CallbackResult{
		Code:         query.Get("code"),
		State:        firstNonEmpty(query.Get("state"), fragment.Get("state")),
		AccessToken:  fragment.Get("access_token"),
		RefreshToken: fragment.Get("refresh_token"),
	}

	if result.Code == "" && result.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback carried no code or tokens")
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
