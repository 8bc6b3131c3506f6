package cf

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vchrisb/setup-cf/pkg/system"
)

type recordingExecutor struct {
	name   string
	calls  [][]string
	output []byte
	err    error
}

func (r *recordingExecutor) Run(_ context.Context, name string, args []string) ([]byte, error) {
	r.name = name
	r.calls = append(r.calls, append([]string(nil), args...))
	return r.output, r.err
}

func TestAuthRequest_Args(t *testing.T) {
	cases := []struct {
		name string
		req  AuthRequest
		want []string
	}{
		{"password", AuthRequest{Principal: "user", Secret: "pw"}, []string{"auth", "user", "pw"}},
		{"password with origin", AuthRequest{Principal: "user", Secret: "pw", Origin: "ldap"}, []string{"auth", "user", "pw", "--origin", "ldap"}},
		{"client secret", AuthRequest{Principal: "cid", Secret: "s", ClientCredentials: true}, []string{"auth", "cid", "s", "--client-credentials"}},
		{"client assertion", AuthRequest{Principal: "cid", ClientCredentials: true, Assertion: "a.b.c"}, []string{"auth", "cid", "--client-credentials", "--assertion", "a.b.c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.req.Args())
		})
	}
}

func TestCLI_Commands(t *testing.T) {
	exec := &recordingExecutor{output: []byte("OK")}
	cli := NewCLI("/opt/cf/cf8", exec, system.NewTestLogger())
	ctx := context.Background()

	require.NoError(t, cli.API(ctx, "https://api.example.com", false))
	require.NoError(t, cli.API(ctx, "https://api.example.com", true))
	require.NoError(t, cli.Target(ctx, "org", ""))
	require.NoError(t, cli.Target(ctx, "org", "space"))
	require.NoError(t, cli.Auth(ctx, AuthRequest{Principal: "user", Secret: "pw"}))

	assert.Equal(t, "/opt/cf/cf8", exec.name)
	assert.Equal(t, [][]string{
		{"api", "https://api.example.com"},
		{"api", "https://api.example.com", "--skip-ssl-validation"},
		{"target", "-o", "org"},
		{"target", "-o", "org", "-s", "space"},
		{"auth", "user", "pw"},
	}, exec.calls)
}

func TestCLI_Validation(t *testing.T) {
	exec := &recordingExecutor{}
	cli := NewCLI("", exec, nil)
	assert.Equal(t, DefaultBinary, cli.Binary)

	require.Error(t, cli.API(context.Background(), "", false))
	require.Error(t, cli.Target(context.Background(), "", "space"))
	require.Error(t, cli.Auth(context.Background(), AuthRequest{}))
	assert.Empty(t, exec.calls)
}

func TestCLI_CommandErrorRedactsSecrets(t *testing.T) {
	exec := &recordingExecutor{output: []byte("Credentials were rejected for pw, please try again."), err: errors.New("exit status 1")}
	cli := NewCLI("cf", exec, nil)

	err := cli.Auth(context.Background(), AuthRequest{Principal: "user", Secret: "pw", Origin: "uaa"})
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, []string{"auth", "user", "***", "--origin", "uaa"}, cmdErr.Args)
	assert.Equal(t, -1, cmdErr.ExitCode)
	assert.NotContains(t, err.Error(), " pw")
	assert.Contains(t, err.Error(), "Credentials were rejected")
}

func TestExecExecutor(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cli := NewCLI("sh", ExecExecutor{Env: []string{"SETUP_CF_TEST=hello"}}, nil)

	out, err := cli.run(context.Background(), []string{"-c", "echo $SETUP_CF_TEST"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	_, err = cli.run(context.Background(), []string{"-c", "echo failing >&2; exit 3"})
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "failing", cmdErr.Output)
	assert.Contains(t, err.Error(), "(exit 3)")
}
