package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newSendContext builds a *cli.Context with sendFlags applied and args
// parsed, mirroring what urfave/cli constructs internally during app.Run.
func newSendContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	app := &cli.App{Flags: sendFlags}
	fs := flag.NewFlagSet("dicomsend", flag.ContinueOnError)
	for _, f := range sendFlags {
		require.NoError(t, f.Apply(fs))
	}
	require.NoError(t, fs.Parse(args))
	return cli.NewContext(app, fs, nil)
}

func TestResolveSendOptionsFlagsOnly(t *testing.T) {
	c := newSendContext(t, "--input=/data", "--host=10.0.0.1", "--ae-title=DEST", "--port=104", "--threads=4")

	opts, err := resolveSendOptions(c)
	require.NoError(t, err)
	require.Equal(t, "/data", opts.Input)
	require.Equal(t, "10.0.0.1", opts.Host)
	require.Equal(t, "DEST", opts.AETitle)
	require.Equal(t, 104, opts.Port)
	require.Equal(t, 4, opts.Threads)
	require.Equal(t, "RUST_SCU", opts.CallingAE)
}

func TestResolveSendOptionsMissingRequiredField(t *testing.T) {
	c := newSendContext(t, "--host=10.0.0.1", "--ae-title=DEST")
	_, err := resolveSendOptions(c)
	require.ErrorContains(t, err, "--input is required")
}

func TestResolveSendOptionsConfigFileFillsUnsetFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeYAML(t, path, `
input: /configured/input
host: config-host
aeTitle: CONFIG_AE
port: 9999
threads: 8
`)

	c := newSendContext(t, "--config="+path)

	opts, err := resolveSendOptions(c)
	require.NoError(t, err)
	require.Equal(t, "/configured/input", opts.Input)
	require.Equal(t, "config-host", opts.Host)
	require.Equal(t, "CONFIG_AE", opts.AETitle)
	require.Equal(t, 9999, opts.Port)
	require.Equal(t, 8, opts.Threads)
}

func TestResolveSendOptionsFlagOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeYAML(t, path, `
input: /configured/input
host: config-host
aeTitle: CONFIG_AE
`)

	c := newSendContext(t, "--config="+path, "--host=explicit-host")

	opts, err := resolveSendOptions(c)
	require.NoError(t, err)
	require.Equal(t, "/configured/input", opts.Input)
	require.Equal(t, "explicit-host", opts.Host, "explicit flag must win over config file value")
	require.Equal(t, "CONFIG_AE", opts.AETitle)
}
