// Package config collects the run inputs from an optional YAML file, the
// GitHub Actions INPUT_* environment and command-line flags, in increasing
// order of precedence, and resolves secrets from files or the OS keyring.
package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/vchrisb/setup-cf/pkg/setupcf/auth"
)

// Inputs is the merged view of all input sources.
type Inputs struct {
	API               string
	GrantType         string
	Audience          string
	ClientID          string
	ClientSecret      string
	Assertion         string
	Username          string
	Password          string
	Origin            string
	Org               string
	Space             string
	SkipSSLValidation bool
	Version           string

	ClientSecretFile   string
	PasswordFile       string
	KeyringService     string
	CFHome             string
	ToolCache          string
	Debug              bool
	MetricsPushgateway string
	ConfigFile         string
}

// Validate checks the inputs every run needs, the fields the grant type
// requires and the structure of a supplied jwt, and normalizes Version to its
// canonical semver form. It makes no network calls.
func (in *Inputs) Validate() error {
	var missing []string
	if in.API == "" {
		missing = append(missing, InputAPI)
	}
	if in.GrantType == "" {
		missing = append(missing, InputGrantType)
	}
	if in.Version == "" {
		missing = append(missing, InputVersion)
	}
	if len(missing) > 0 {
		return &auth.ValidationError{Message: "missing required input(s): " + strings.Join(missing, ", ")}
	}
	if _, err := auth.ParseGrantType(in.GrantType); err != nil {
		return err
	}
	v, err := semver.NewVersion(in.Version)
	if err != nil {
		return &auth.ValidationError{Message: fmt.Sprintf("invalid cf CLI version %q", in.Version), Err: err}
	}
	in.Version = v.String()
	grant, err := in.GrantInput()
	if err != nil {
		return err
	}
	return grant.Validate()
}

// GrantInput converts the inputs into the resolver's input.
func (in *Inputs) GrantInput() (auth.GrantInput, error) {
	grantType, err := auth.ParseGrantType(in.GrantType)
	if err != nil {
		return auth.GrantInput{}, err
	}
	return auth.GrantInput{
		GrantType:    grantType,
		Audience:     in.Audience,
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		Assertion:    in.Assertion,
		Username:     in.Username,
		Password:     in.Password,
		Origin:       in.Origin,
		Org:          in.Org,
		Space:        in.Space,
	}, nil
}

// Secrets returns the non-empty secret values, for log masking.
func (in *Inputs) Secrets() []string {
	var out []string
	for _, s := range []string{in.ClientSecret, in.Password, in.Assertion} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
