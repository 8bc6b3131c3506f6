package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/vchrisb/setup-cf/pkg/setupcf/cf"
)

// SessionStore is the cf session file as seen by token-endpoint grants.
type SessionStore interface {
	Endpoint() (string, error)
	Update(token *oauth2.Token) error
}

// CLI is the subset of the cf CLI used for delegated grants and targeting.
type CLI interface {
	Auth(ctx context.Context, req cf.AuthRequest) error
	Target(ctx context.Context, org, space string) error
}

// Resolver authenticates the cf CLI for a GrantInput.
//
// Resolve must only be called after `cf api` succeeded: token-endpoint grants
// read the UAA endpoint from the session file that command writes, and fail
// with cf.ErrNoEndpoint otherwise.
type Resolver struct {
	Issuer    AssertionSource
	Exchanger Exchanger
	Session   SessionStore
	CLI       CLI
	Log       *zap.SugaredLogger
}

// Resolve runs the flow for in.GrantType and, once authenticated, targets
// in.Org/in.Space when an org is given.
func (r *Resolver) Resolve(ctx context.Context, in GrantInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	var err error
	switch in.GrantType {
	case GrantJWTBearer:
		err = r.jwtBearer(ctx, in)
	case GrantPrivateKeyJWT:
		err = r.privateKeyJWT(ctx, in)
	case GrantClientCredentials:
		err = r.clientCredentials(ctx, in)
	case GrantPassword:
		err = r.password(ctx, in)
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported grant type: %q", string(in.GrantType))}
	}
	if err != nil {
		return err
	}
	return r.target(ctx, in)
}

func (r *Resolver) jwtBearer(ctx context.Context, in GrantInput) error {
	audience := in.Audience
	if audience == "" {
		audience = DefaultAudience
	}
	endpoint, err := r.Session.Endpoint()
	if err != nil {
		return err
	}
	assertion, err := r.assertion(ctx, in.Assertion, audience)
	if err != nil {
		return err
	}
	token, err := r.Exchanger.Exchange(ctx, endpoint, BearerAssertion{
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		Assertion:    assertion,
	})
	if err != nil {
		return err
	}
	if err := r.Session.Update(token); err != nil {
		return err
	}
	r.logger().Infow("Obtained and stored UAA token", "grantType", in.GrantType, "endpoint", endpoint)
	return nil
}

func (r *Resolver) privateKeyJWT(ctx context.Context, in GrantInput) error {
	endpoint, err := r.Session.Endpoint()
	if err != nil {
		return err
	}
	assertion, err := r.assertion(ctx, in.Assertion, in.ClientID)
	if err != nil {
		return err
	}
	token, err := r.Exchanger.Exchange(ctx, endpoint, ClientCredentialsAssertion{Assertion: assertion})
	if err != nil {
		return err
	}
	if err := r.Session.Update(token); err != nil {
		return err
	}
	r.logger().Infow("Obtained and stored UAA token", "grantType", in.GrantType, "endpoint", endpoint)
	return nil
}

func (r *Resolver) clientCredentials(ctx context.Context, in GrantInput) error {
	req := cf.AuthRequest{
		Principal:         in.ClientID,
		ClientCredentials: true,
		Origin:            in.Origin,
	}
	if in.ClientSecret != "" {
		req.Secret = in.ClientSecret
	} else {
		assertion, err := r.assertion(ctx, in.Assertion, in.ClientID)
		if err != nil {
			return err
		}
		req.Assertion = assertion
	}
	if err := r.CLI.Auth(ctx, req); err != nil {
		return err
	}
	r.logger().Infow("Authenticated using client credentials", "clientID", in.ClientID, "assertion", req.Assertion != "")
	return nil
}

func (r *Resolver) password(ctx context.Context, in GrantInput) error {
	if err := r.CLI.Auth(ctx, cf.AuthRequest{
		Principal: in.Username,
		Secret:    in.Password,
		Origin:    in.Origin,
	}); err != nil {
		return err
	}
	r.logger().Infow("Authenticated using password", "username", in.Username)
	return nil
}

// assertion returns supplied when set, otherwise a freshly issued token.
func (r *Resolver) assertion(ctx context.Context, supplied, audience string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}
	if r.Issuer == nil {
		return "", &IssuerError{Audience: audience, Err: errIssuerUnavailable}
	}
	token, err := r.Issuer.Obtain(ctx, audience)
	if err != nil {
		return "", err
	}
	r.logger().Infow("Requested ID token", "audience", audience)
	return token, nil
}

func (r *Resolver) target(ctx context.Context, in GrantInput) error {
	if in.Org == "" {
		if in.Space != "" {
			r.logger().Warnw("Ignoring space without org", "space", in.Space)
		}
		return nil
	}
	if err := r.CLI.Target(ctx, in.Org, in.Space); err != nil {
		return err
	}
	r.logger().Infow("Targeted org and space", "org", in.Org, "space", in.Space)
	return nil
}

func (r *Resolver) logger() *zap.SugaredLogger {
	if r.Log == nil {
		return zap.NewNop().Sugar()
	}
	return r.Log
}
