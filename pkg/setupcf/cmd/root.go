// Package cmd implements the setup-cf command line.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"

	"github.com/vchrisb/setup-cf/pkg/setupcf/config"
	"github.com/vchrisb/setup-cf/pkg/setupcf/setup"
	"github.com/vchrisb/setup-cf/pkg/system"
)

type Config struct {
	OutputWriter io.Writer
	// Action reads INPUT_* variables and writes workflow commands.
	Action *githubactions.Action
	// Run executes the setup; defaults to setup.Run.
	Run func(ctx context.Context, opts setup.Options) error
}

type runtimeState struct {
	writer io.Writer
	action *githubactions.Action
	run    func(ctx context.Context, opts setup.Options) error
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		OutputWriter: os.Stdout,
		Action:       githubactions.New(),
		Run:          setup.Run,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter, action: cfg.Action, run: cfg.Run}

	root := &cobra.Command{
		Use:   "setup-cf",
		Short: "Install the cf CLI and log in to Cloud Foundry",
		Long: `Installs the requested cf CLI version, targets the API endpoint and
authenticates with one of the jwt-bearer, private-key-jwt, client-credentials
or password grants. Every flag can also be given as an INPUT_<NAME> variable
or in the YAML file passed with --config.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.action == nil {
				rt.action = githubactions.New(githubactions.WithWriter(rt.writer))
			}
			if rt.run == nil {
				rt.run = setup.Run
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, runtimeKey{}, rt))
			return nil
		},
		RunE: runSetup,
	}
	config.RegisterFlags(root.Flags())

	root.AddCommand(NewVersionCommand())
	return root
}

func runSetup(cmd *cobra.Command, _ []string) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	in, err := config.Load(cmd.Flags(), rt.action)
	if err != nil {
		return err
	}
	log, err := system.NewLogger(in.Debug)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	return rt.run(cmd.Context(), setup.Options{
		Inputs:  in,
		Log:     log,
		Mask:    rt.action.AddMask,
		AddPath: func(dir string) error { rt.action.AddPath(dir); return nil },
	})
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

// ReportError emits err as a workflow error annotation.
func ReportError(action *githubactions.Action, err error) {
	if err == nil {
		return
	}
	if action == nil {
		action = githubactions.New()
	}
	action.Errorf("%s", err.Error())
}
