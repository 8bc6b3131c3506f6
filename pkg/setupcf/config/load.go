package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/pflag"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v2"

	"github.com/vchrisb/setup-cf/pkg/setupcf/auth"
)

// Input names as declared by the action. Flags use the same names with
// dashes instead of underscores.
const (
	InputAPI                = "api"
	InputGrantType          = "grant_type"
	InputAudience           = "audience"
	InputClientID           = "client_id"
	InputClientSecret       = "client_secret"
	InputJWT                = "jwt"
	InputAssertion          = "assertion"
	InputUsername           = "username"
	InputPassword           = "password"
	InputOrigin             = "origin"
	InputOrg                = "org"
	InputSpace              = "space"
	InputSkipSSLValidation  = "skip_ssl_validation"
	InputVersion            = "version"
	InputClientSecretFile   = "client_secret_file"
	InputPasswordFile       = "password_file"
	InputKeyringService     = "keyring_service"
	InputCFHome             = "cf_home"
	InputToolCache          = "tool_cache"
	InputDebug              = "debug"
	InputMetricsPushgateway = "metrics_pushgateway"
	InputConfig             = "config"
)

type definition struct {
	name    string
	usage   string
	boolean bool
}

var definitions = []definition{
	{name: InputAPI, usage: "Cloud Foundry API endpoint"},
	{name: InputGrantType, usage: "Grant type: jwt-bearer, private-key-jwt, client-credentials or password"},
	{name: InputAudience, usage: "Audience of the requested ID token (jwt-bearer, default uaa)"},
	{name: InputClientID, usage: "OAuth client id"},
	{name: InputClientSecret, usage: "OAuth client secret"},
	{name: InputJWT, usage: "JWT assertion to use instead of requesting an ID token"},
	{name: InputAssertion, usage: "Alias for --jwt"},
	{name: InputUsername, usage: "Username for the password grant"},
	{name: InputPassword, usage: "Password for the password grant"},
	{name: InputOrigin, usage: "Identity provider origin passed to cf auth"},
	{name: InputOrg, usage: "Org to target"},
	{name: InputSpace, usage: "Space to target"},
	{name: InputSkipSSLValidation, usage: "Skip TLS verification of the API and token endpoint", boolean: true},
	{name: InputVersion, usage: "cf CLI version to install"},
	{name: InputClientSecretFile, usage: "Read the client secret from this file"},
	{name: InputPasswordFile, usage: "Read the password from this file"},
	{name: InputKeyringService, usage: "Look up missing secrets in the OS keyring under this service"},
	{name: InputCFHome, usage: "Directory holding the .cf session directory (default $CF_HOME or $HOME)"},
	{name: InputToolCache, usage: "Tool cache directory (default $RUNNER_TOOL_CACHE)"},
	{name: InputDebug, usage: "Enable debug logging", boolean: true},
	{name: InputMetricsPushgateway, usage: "Push run metrics to this Prometheus Pushgateway URL"},
	{name: InputConfig, usage: "YAML file with input values"},
}

// FlagName returns the flag spelling of an input name.
func FlagName(input string) string {
	return strings.ReplaceAll(input, "_", "-")
}

// RegisterFlags declares one flag per input. Flags only take part in Load
// when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, def := range definitions {
		if def.boolean {
			fs.Bool(FlagName(def.name), false, def.usage)
			continue
		}
		fs.String(FlagName(def.name), "", def.usage)
	}
}

// Load merges the file, environment and flag sources, resolves secrets and
// validates the result. action provides INPUT_* lookups and masking; fs may
// be nil.
func Load(fs *pflag.FlagSet, action *githubactions.Action) (*Inputs, error) {
	if action == nil {
		action = githubactions.New()
	}

	env := map[string]string{}
	for _, def := range definitions {
		if v := action.GetInput(def.name); v != "" {
			env[def.name] = v
		}
	}
	flags := map[string]string{}
	if fs != nil {
		for _, def := range definitions {
			if f := fs.Lookup(FlagName(def.name)); f != nil && f.Changed {
				flags[def.name] = f.Value.String()
			}
		}
	}

	values := map[string]string{}
	path := firstNonEmpty(flags[InputConfig], env[InputConfig])
	if path != "" {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		merge(values, file)
	}
	merge(values, env)
	merge(values, flags)

	in, err := build(values)
	if err != nil {
		return nil, err
	}
	if err := in.resolveSecrets(); err != nil {
		return nil, err
	}
	for _, secret := range in.Secrets() {
		action.AddMask(secret)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func loadFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse input file %s: %w", path, err)
	}
	known := map[string]bool{}
	for _, def := range definitions {
		known[def.name] = true
	}
	out := map[string]string{}
	for key, value := range raw {
		name := strings.ReplaceAll(key, "-", "_")
		if !known[name] {
			return nil, fmt.Errorf("unknown input %q in %s", key, path)
		}
		if value == nil {
			continue
		}
		out[name] = fmt.Sprint(value)
	}
	return out, nil
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func build(values map[string]string) (*Inputs, error) {
	skipSSL, err := parseBool(values, InputSkipSSLValidation)
	if err != nil {
		return nil, err
	}
	debug, err := parseBool(values, InputDebug)
	if err != nil {
		return nil, err
	}
	return &Inputs{
		API:                strings.TrimSpace(values[InputAPI]),
		GrantType:          values[InputGrantType],
		Audience:           values[InputAudience],
		ClientID:           values[InputClientID],
		ClientSecret:       values[InputClientSecret],
		Assertion:          firstNonEmpty(values[InputJWT], values[InputAssertion]),
		Username:           values[InputUsername],
		Password:           values[InputPassword],
		Origin:             values[InputOrigin],
		Org:                values[InputOrg],
		Space:              values[InputSpace],
		SkipSSLValidation:  skipSSL,
		Version:            values[InputVersion],
		ClientSecretFile:   values[InputClientSecretFile],
		PasswordFile:       values[InputPasswordFile],
		KeyringService:     values[InputKeyringService],
		CFHome:             values[InputCFHome],
		ToolCache:          values[InputToolCache],
		Debug:              debug,
		MetricsPushgateway: values[InputMetricsPushgateway],
		ConfigFile:         values[InputConfig],
	}, nil
}

func parseBool(values map[string]string, name string) (bool, error) {
	v := strings.TrimSpace(values[name])
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &auth.ValidationError{Message: fmt.Sprintf("input %s must be a boolean, got %q", name, v), Err: err}
	}
	return b, nil
}

// resolveSecrets fills empty secrets from their file, then from the keyring.
// A keyring miss leaves the secret empty.
func (in *Inputs) resolveSecrets() error {
	var err error
	if in.ClientSecret == "" && in.ClientSecretFile != "" {
		if in.ClientSecret, err = readSecretFile(in.ClientSecretFile); err != nil {
			return err
		}
	}
	if in.Password == "" && in.PasswordFile != "" {
		if in.Password, err = readSecretFile(in.PasswordFile); err != nil {
			return err
		}
	}
	if in.KeyringService == "" {
		return nil
	}
	if in.ClientSecret == "" && in.ClientID != "" {
		if in.ClientSecret, err = keyringSecret(in.KeyringService, in.ClientID); err != nil {
			return err
		}
	}
	if in.Password == "" && in.Username != "" {
		if in.Password, err = keyringSecret(in.KeyringService, in.Username); err != nil {
			return err
		}
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	return strings.TrimRight(string(content), "\r\n"), nil
}

func keyringSecret(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s/%s from keyring: %w", service, user, err)
	}
	return secret, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
