package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	// EnvIDTokenRequestURL and EnvIDTokenRequestToken are exported by the
	// GitHub Actions runner when the job has `id-token: write` permission.
	EnvIDTokenRequestURL   = "ACTIONS_ID_TOKEN_REQUEST_URL"
	EnvIDTokenRequestToken = "ACTIONS_ID_TOKEN_REQUEST_TOKEN"
)

var errIssuerUnavailable = errors.New("ID token issuer not available; grant the job `id-token: write` permission or supply a jwt")

// ActionsIssuer requests OIDC ID tokens from the GitHub Actions runtime.
// Every call to Obtain hits the issuer; nothing is cached.
type ActionsIssuer struct {
	RequestURL   string
	RequestToken string
	// Mask, when set, is called with every issued token so it is hidden in
	// job logs.
	Mask   func(string)
	client *resty.Client
}

func NewActionsIssuer(requestURL, requestToken string, client *resty.Client) *ActionsIssuer {
	if client == nil {
		client = NewHTTPClient(false)
	}
	return &ActionsIssuer{RequestURL: requestURL, RequestToken: requestToken, client: client}
}

func (i *ActionsIssuer) Obtain(ctx context.Context, audience string) (string, error) {
	if i.RequestURL == "" || i.RequestToken == "" {
		return "", &IssuerError{Audience: audience, Err: errIssuerUnavailable}
	}
	req := i.client.R().
		SetContext(ctx).
		SetAuthToken(i.RequestToken).
		SetHeader("Accept", "application/json")
	if audience != "" {
		req.SetQueryParam("audience", audience)
	}
	resp, err := req.Get(i.RequestURL)
	if err != nil {
		return "", &IssuerError{Audience: audience, Err: err}
	}
	if !resp.IsSuccess() {
		return "", &IssuerError{
			Audience: audience,
			Err:      fmt.Errorf("issuer returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())),
		}
	}
	var payload struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", &IssuerError{Audience: audience, Err: fmt.Errorf("failed to decode issuer response: %w", err)}
	}
	if payload.Value == "" {
		return "", &IssuerError{Audience: audience, Err: errors.New("issuer response has no token value")}
	}
	if i.Mask != nil {
		i.Mask(payload.Value)
	}
	if err := ValidateAssertion(payload.Value); err != nil {
		return "", &IssuerError{Audience: audience, Err: err}
	}
	return payload.Value, nil
}
