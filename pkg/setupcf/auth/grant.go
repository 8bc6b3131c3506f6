package auth

import (
	"fmt"
	"strings"
)

// GrantType is one of the four supported authentication flows.
type GrantType string

const (
	GrantJWTBearer         GrantType = "jwt-bearer"
	GrantPrivateKeyJWT     GrantType = "private-key-jwt"
	GrantClientCredentials GrantType = "client-credentials"
	GrantPassword          GrantType = "password"
)

// DefaultAudience is requested from the ID-token issuer for jwt-bearer when
// no audience was configured.
const DefaultAudience = "uaa"

var grantAliases = map[string]GrantType{
	"jwt-bearer":         GrantJWTBearer,
	"jwt_bearer":         GrantJWTBearer,
	"private-key-jwt":    GrantPrivateKeyJWT,
	"private_key_jwt":    GrantPrivateKeyJWT,
	"client-credentials": GrantClientCredentials,
	"client_credentials": GrantClientCredentials,
	"password":           GrantPassword,
}

// ParseGrantType accepts both dashed and underscored spellings.
func ParseGrantType(value string) (GrantType, error) {
	grant, ok := grantAliases[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", &ValidationError{Message: fmt.Sprintf("unsupported grant type: %q", value)}
	}
	return grant, nil
}

func (g GrantType) String() string {
	return string(g)
}

// UsesTokenEndpoint reports whether the grant is exchanged directly against
// UAA rather than delegated to `cf auth`.
func (g GrantType) UsesTokenEndpoint() bool {
	switch g {
	case GrantJWTBearer, GrantPrivateKeyJWT:
		return true
	case GrantClientCredentials, GrantPassword:
		return false
	}
	return false
}

// GrantInput holds the credentials supplied for a single run. Which fields are
// required depends on GrantType.
type GrantInput struct {
	GrantType    GrantType
	Audience     string
	ClientID     string
	ClientSecret string
	Assertion    string
	Username     string
	Password     string
	Origin       string
	Org          string
	Space        string
}

// Validate checks the fields required by GrantType and the structure of a
// supplied assertion. It makes no network calls, so callers can run it before
// any setup work.
func (in GrantInput) Validate() error {
	if in.Assertion != "" {
		if err := ValidateAssertion(in.Assertion); err != nil {
			return err
		}
	}
	switch in.GrantType {
	case GrantJWTBearer:
		if in.ClientID == "" || in.ClientSecret == "" {
			return &ValidationError{Message: "JWT Bearer Token Grant requires audience, client_id and client_secret"}
		}
	case GrantPrivateKeyJWT:
		if in.Assertion == "" && in.ClientID == "" {
			return &ValidationError{Message: "Client Credentials Grant using private_key_jwt requires client_assertion/jwt"}
		}
	case GrantClientCredentials:
		if in.ClientID == "" {
			return &ValidationError{Message: "Client Credentials authentication requires client_id and client_secret"}
		}
	case GrantPassword:
		if in.Username == "" || in.Password == "" {
			return &ValidationError{Message: "Password authentication requires username and password"}
		}
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported grant type: %q", string(in.GrantType))}
	}
	return nil
}
