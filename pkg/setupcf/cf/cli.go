package cf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultBinary is resolved through PATH when no installed path is known.
	DefaultBinary = "cf"
	redacted      = "***"
)

// Executor runs a program and returns its combined output.
type Executor interface {
	Run(ctx context.Context, name string, args []string) ([]byte, error)
}

// ExecExecutor runs commands with os/exec. Env is appended to the current
// process environment.
type ExecExecutor struct {
	Env []string
}

func (e ExecExecutor) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd.CombinedOutput()
}

// CommandError reports a cf invocation that exited non-zero. Args has
// credentials replaced by "***".
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("cf %s failed", strings.Join(e.Args, " "))
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Output != "" {
		return msg + ": " + e.Output
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// AuthRequest describes a `cf auth` invocation. Principal is the client id or
// username; Secret the client secret or password.
type AuthRequest struct {
	Principal         string
	Secret            string
	ClientCredentials bool
	Assertion         string
	Origin            string
}

// Args builds the argument vector, e.g.
// auth <client_id> [<client_secret>] [--client-credentials] [--assertion <jwt>] [--origin <origin>].
func (r AuthRequest) Args() []string {
	args := []string{"auth", r.Principal}
	if r.Secret != "" {
		args = append(args, r.Secret)
	}
	if r.ClientCredentials {
		args = append(args, "--client-credentials")
	}
	if r.Assertion != "" {
		args = append(args, "--assertion", r.Assertion)
	}
	if r.Origin != "" {
		args = append(args, "--origin", r.Origin)
	}
	return args
}

// CLI drives the cf binary.
type CLI struct {
	Binary string
	Exec   Executor
	Log    *zap.SugaredLogger
}

func NewCLI(binary string, exec Executor, log *zap.SugaredLogger) *CLI {
	if binary == "" {
		binary = DefaultBinary
	}
	if exec == nil {
		exec = ExecExecutor{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CLI{Binary: binary, Exec: exec, Log: log}
}

// API points the CLI at endpoint; this is what creates the session file.
func (c *CLI) API(ctx context.Context, endpoint string, skipSSLValidation bool) error {
	if endpoint == "" {
		return errors.New("api endpoint is required")
	}
	args := []string{"api", endpoint}
	if skipSSLValidation {
		args = append(args, "--skip-ssl-validation")
	}
	_, err := c.run(ctx, args)
	return err
}

func (c *CLI) Auth(ctx context.Context, req AuthRequest) error {
	if req.Principal == "" {
		return errors.New("cf auth requires a client id or username")
	}
	_, err := c.run(ctx, req.Args(), req.Secret, req.Assertion)
	return err
}

// Target selects org and, if given, space.
func (c *CLI) Target(ctx context.Context, org, space string) error {
	if org == "" {
		return errors.New("org is required to target")
	}
	args := []string{"target", "-o", org}
	if space != "" {
		args = append(args, "-s", space)
	}
	out, err := c.run(ctx, args)
	if err != nil {
		return err
	}
	c.Log.Info(strings.TrimSpace(string(out)))
	return nil
}

func (c *CLI) run(ctx context.Context, args []string, secrets ...string) ([]byte, error) {
	shown := redact(args, secrets)
	c.Log.Debugw("Running cf", "args", shown)
	out, err := c.Exec.Run(ctx, c.Binary, args)
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return out, &CommandError{
			Args:     shown,
			ExitCode: exitCode,
			Output:   redactText(strings.TrimSpace(string(out)), secrets),
			Err:      err,
		}
	}
	return out, nil
}

func redact(args []string, secrets []string) []string {
	shown := make([]string, len(args))
	for i, arg := range args {
		shown[i] = arg
		for _, secret := range secrets {
			if secret != "" && arg == secret {
				shown[i] = redacted
				break
			}
		}
	}
	return shown
}

func redactText(text string, secrets []string) string {
	for _, secret := range secrets {
		if secret != "" {
			text = strings.ReplaceAll(text, secret, redacted)
		}
	}
	return text
}
