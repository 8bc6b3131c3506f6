package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const (
	grantTypeJWTBearer      = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	clientAssertionTypeJWT  = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	grantTypeClientCreds    = "client_credentials"
	tokenEndpointPathSuffix = "/oauth/token"
)

// Variant selects the request body sent to the token endpoint. It is
// implemented only by BearerAssertion and ClientCredentialsAssertion.
type Variant interface {
	formData() map[string]string
}

// BearerAssertion exchanges an assertion for a token on behalf of a
// confidential client (RFC 7523 section 2.1).
type BearerAssertion struct {
	ClientID     string
	ClientSecret string
	Assertion    string
}

func (v BearerAssertion) formData() map[string]string {
	return map[string]string{
		"client_id":     v.ClientID,
		"client_secret": v.ClientSecret,
		"grant_type":    grantTypeJWTBearer,
		"assertion":     v.Assertion,
	}
}

// ClientCredentialsAssertion authenticates the client itself with a signed
// assertion (private_key_jwt, RFC 7523 section 2.2).
type ClientCredentialsAssertion struct {
	Assertion string
}

func (v ClientCredentialsAssertion) formData() map[string]string {
	return map[string]string{
		"client_assertion":      v.Assertion,
		"client_assertion_type": clientAssertionTypeJWT,
		"grant_type":            grantTypeClientCreds,
	}
}

// Exchanger performs a single token request.
type Exchanger interface {
	Exchange(ctx context.Context, endpoint string, variant Variant) (*oauth2.Token, error)
}

// TokenExchanger posts to {endpoint}/oauth/token. Requests are never retried.
type TokenExchanger struct {
	client *resty.Client
}

func NewTokenExchanger(client *resty.Client) *TokenExchanger {
	if client == nil {
		client = NewHTTPClient(false)
	}
	return &TokenExchanger{client: client}
}

func (x *TokenExchanger) Exchange(ctx context.Context, endpoint string, variant Variant) (*oauth2.Token, error) {
	if variant == nil {
		return nil, errors.New("token request variant is required")
	}
	tokenURL := strings.TrimRight(endpoint, "/") + tokenEndpointPathSuffix
	resp, err := x.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(variant.formData()).
		Post(tokenURL)
	if err != nil {
		return nil, &ExchangeError{Endpoint: tokenURL, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &ExchangeError{Endpoint: tokenURL, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	token, err := decodeToken(resp.Body())
	if err != nil {
		return nil, &ExchangeError{Endpoint: tokenURL, StatusCode: resp.StatusCode(), Body: string(resp.Body()), Err: err}
	}
	return token, nil
}

// decodeToken keeps the whole response as the token's extra bag so fields
// beyond access_token and refresh_token stay reachable via Token.Extra.
func decodeToken(body []byte) (*oauth2.Token, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	access, _ := raw["access_token"].(string)
	if access == "" {
		return nil, errors.New("token response has no access_token")
	}
	token := &oauth2.Token{AccessToken: access}
	token.TokenType, _ = raw["token_type"].(string)
	token.RefreshToken, _ = raw["refresh_token"].(string)
	if expiresIn, ok := raw["expires_in"].(float64); ok && expiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return token.WithExtra(raw), nil
}
