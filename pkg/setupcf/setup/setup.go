// Package setup runs a complete setup: install the cf CLI, target the API,
// authenticate and target org/space. Phases run strictly in order and the
// first failure ends the run.
package setup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vchrisb/setup-cf/pkg/metrics"
	"github.com/vchrisb/setup-cf/pkg/setupcf/auth"
	"github.com/vchrisb/setup-cf/pkg/setupcf/cf"
	"github.com/vchrisb/setup-cf/pkg/setupcf/config"
	"github.com/vchrisb/setup-cf/pkg/setupcf/install"
	"github.com/vchrisb/setup-cf/pkg/system"
)

// Phase names, used in wrapped errors and as metric labels.
const (
	PhaseInstall      = "install"
	PhaseAPI          = "api"
	PhaseAuthenticate = "authenticate"
)

// Installer provides the cf binary for a version.
type Installer interface {
	Install(ctx context.Context, version string) (string, error)
}

// CLI is the cf CLI surface used by a run.
type CLI interface {
	API(ctx context.Context, endpoint string, skipSSLValidation bool) error
	auth.CLI
}

// Options wires a run. Only Inputs is required; the other fields default to
// the real implementations.
type Options struct {
	Inputs *config.Inputs
	Log    *zap.SugaredLogger
	RunID  string

	Installer Installer
	// NewCLI builds the CLI for the installed binary.
	NewCLI    func(binary string) CLI
	Session   auth.SessionStore
	Issuer    auth.AssertionSource
	Exchanger auth.Exchanger
	// Mask hides secrets obtained during the run from the job log.
	Mask func(string)
	// AddPath publishes the install directory to later steps.
	AddPath func(dir string) error

	PushClient *http.Client
}

// Run executes all phases. When a Pushgateway is configured, metrics are
// pushed after the run whether it succeeded or not; a failed push is only
// logged.
func Run(ctx context.Context, opts Options) error {
	if opts.Inputs == nil {
		return errors.New("inputs are required")
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.With(system.RunFields(runID, "")...)

	err := run(ctx, opts, log)

	if url := opts.Inputs.MetricsPushgateway; url != "" {
		if pushErr := metrics.Push(ctx, url, metrics.DefaultJob, runID, opts.PushClient); pushErr != nil {
			log.Warnw("Failed to push metrics", "pushgateway", url, "error", pushErr)
		} else {
			log.Debugw("Pushed metrics", "pushgateway", url)
		}
	}
	return err
}

func run(ctx context.Context, opts Options, log *zap.SugaredLogger) error {
	in := opts.Inputs
	grant, err := in.GrantInput()
	if err != nil {
		return err
	}
	// fail on incomplete credentials before downloading or touching the API
	if err := grant.Validate(); err != nil {
		return err
	}

	var binary string
	err = phase(log, PhaseInstall, func() error {
		installer := opts.Installer
		if installer == nil {
			installer = &install.Installer{
				CacheDir: in.ToolCache,
				Client:   auth.NewHTTPClient(false),
				Log:      log,
				AddPath:  opts.AddPath,
			}
		}
		binary, err = installer.Install(ctx, in.Version)
		if err != nil {
			return err
		}
		log.Infof(">>> CF CLI v%s installed successfully", in.Version)
		return nil
	})
	if err != nil {
		return err
	}

	cli := newCLI(opts, binary, log)
	err = phase(log, PhaseAPI, func() error {
		if err := cli.API(ctx, in.API, in.SkipSSLValidation); err != nil {
			return err
		}
		log.Info(">>> Successfully set CF API endpoint")
		return nil
	})
	if err != nil {
		return err
	}

	resolver := &auth.Resolver{
		Issuer:    opts.Issuer,
		Exchanger: opts.Exchanger,
		Session:   opts.Session,
		CLI:       cli,
		Log:       log,
	}
	if resolver.Session == nil {
		resolver.Session = cf.NewSessionFile(cf.ConfigPath(in.CFHome))
	}
	if resolver.Exchanger == nil {
		resolver.Exchanger = auth.NewTokenExchanger(auth.NewHTTPClient(in.SkipSSLValidation))
	}
	if resolver.Issuer == nil {
		issuer := auth.NewActionsIssuer(os.Getenv(auth.EnvIDTokenRequestURL), os.Getenv(auth.EnvIDTokenRequestToken), nil)
		issuer.Mask = opts.Mask
		resolver.Issuer = issuer
	}

	return phase(log, PhaseAuthenticate, func() error {
		err := resolver.Resolve(ctx, grant)
		metrics.GrantTotal.WithLabelValues(grant.GrantType.String(), grantMethod(grant.GrantType), metrics.Outcome(err)).Inc()
		return err
	})
}

func newCLI(opts Options, binary string, log *zap.SugaredLogger) CLI {
	if opts.NewCLI != nil {
		return opts.NewCLI(binary)
	}
	var env []string
	if opts.Inputs.CFHome != "" {
		env = append(env, "CF_HOME="+opts.Inputs.CFHome)
	}
	return cf.NewCLI(binary, cf.ExecExecutor{Env: env}, log)
}

func grantMethod(g auth.GrantType) string {
	if g.UsesTokenEndpoint() {
		return "token_endpoint"
	}
	return "cf_auth"
}

func phase(log *zap.SugaredLogger, name string, fn func() error) error {
	start := time.Now()
	log.Debugw("Starting phase", "phase", name)
	err := fn()
	metrics.ObservePhase(name, start, err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Debugw("Finished phase", "phase", name, "duration", time.Since(start))
	return nil
}
