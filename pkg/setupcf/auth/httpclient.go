package auth

import (
	"crypto/tls"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vchrisb/setup-cf/pkg/version"
)

// NewHTTPClient returns the client used for issuer and token endpoint
// requests. insecure mirrors `cf api --skip-ssl-validation`.
func NewHTTPClient(insecure bool) *resty.Client {
	return resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", version.UserAgent()).
		SetTLSClientConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecure, // #nosec G402 -- opt-in via skip_ssl_validation
		})
}
