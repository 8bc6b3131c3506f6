package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// AssertionSource obtains a signed assertion for an audience.
type AssertionSource interface {
	Obtain(ctx context.Context, audience string) (string, error)
}

var errEmptyAssertion = errors.New("assertion is empty")

// ValidateAssertion checks that value is a structurally well-formed JWT: three
// base64url segments whose header and payload decode to JSON objects. Neither
// the signature nor the header's alg is checked; that is UAA's job.
func ValidateAssertion(value string) error {
	token := strings.TrimSpace(value)
	if token == "" {
		return invalidJWT(errEmptyAssertion)
	}
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return invalidJWT(errors.New("token must have three dot-separated segments"))
	}
	for i, name := range []string{"header", "payload"} {
		if err := decodeObject(segments[i]); err != nil {
			return invalidJWT(fmt.Errorf("%s: %w", name, err))
		}
	}
	if segments[2] != "" {
		if _, err := jwt.DecodeSegment(segments[2]); err != nil {
			return invalidJWT(fmt.Errorf("signature: %w", err))
		}
	}
	return nil
}

func decodeObject(segment string) error {
	raw, err := jwt.DecodeSegment(segment)
	if err != nil {
		return err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("not a JSON object")
	}
	return nil
}

func invalidJWT(err error) error {
	return &ValidationError{Message: "invalid jwt", Err: err}
}
