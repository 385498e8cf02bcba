package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

func parseCLI(t *testing.T, args ...string) (*kong.Context, *CLI) {
	t.Helper()
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return ctx, cli
}

func TestCLI_Parse(t *testing.T) {
	t.Run("process with repository", func(t *testing.T) {
		ctx, cli := parseCLI(t, "process", "acme/docs")
		require.Equal(t, "process <repository>", ctx.Command())
		require.Equal(t, "acme/docs", cli.Process.Repository)
		require.Equal(t, "docpipe.yaml", cli.Config)
	})

	t.Run("process flags", func(t *testing.T) {
		_, cli := parseCLI(t, "-c", "custom.yaml", "-v", "process", "docs", "--no-export", "--json")
		require.Equal(t, "custom.yaml", cli.Config)
		require.True(t, cli.Verbose)
		require.True(t, cli.Process.NoExport)
		require.True(t, cli.Process.JSON)
	})

	t.Run("scan", func(t *testing.T) {
		ctx, _ := parseCLI(t, "scan")
		require.Equal(t, "scan", ctx.Command())
	})

	t.Run("validate with repository", func(t *testing.T) {
		ctx, cli := parseCLI(t, "validate", "handbook")
		require.Equal(t, "validate <repository>", ctx.Command())
		require.Equal(t, "handbook", cli.Validate.Repository)
	})

	t.Run("export with repository", func(t *testing.T) {
		ctx, cli := parseCLI(t, "export", "acme/handbook", "--json")
		require.Equal(t, "export <repository>", ctx.Command())
		require.Equal(t, "acme/handbook", cli.Export.Repository)
		require.True(t, cli.Export.JSON)
	})

	t.Run("list", func(t *testing.T) {
		ctx, _ := parseCLI(t, "list")
		require.Equal(t, "list", ctx.Command())
	})

	t.Run("serve", func(t *testing.T) {
		ctx, _ := parseCLI(t, "serve")
		require.Equal(t, "serve", ctx.Command())
	})

	t.Run("init with force", func(t *testing.T) {
		ctx, cli := parseCLI(t, "init", "--force")
		require.Equal(t, "init", ctx.Command())
		require.True(t, cli.Init.Force)
	})

	t.Run("process without repository fails", func(t *testing.T) {
		cli := &CLI{}
		parser, err := kong.New(cli, kong.Vars{"version": "test"})
		require.NoError(t, err)
		_, err = parser.Parse([]string{"process"})
		require.Error(t, err)
	})

	t.Run("unknown command fails", func(t *testing.T) {
		cli := &CLI{}
		parser, err := kong.New(cli, kong.Vars{"version": "test"})
		require.NoError(t, err)
		_, err = parser.Parse([]string{"frobnicate"})
		require.Error(t, err)
	})
}

func TestRunInit(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "docpipe.yaml")

	t.Run("creates loadable config", func(t *testing.T) {
		require.NoError(t, RunInit(configPath, false))

		_, err := os.Stat(configPath)
		require.NoError(t, err)

		cfg, err := config.Load(configPath)
		require.NoError(t, err)
		require.Equal(t, config.HostTypeGitHub, cfg.Host.Type)
		require.Equal(t, "example-org", cfg.Host.Organization)
		require.Equal(t, config.DefaultScanInterval, cfg.Daemon.ScanInterval)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		err := RunInit(configPath, false)
		require.Error(t, err)
		require.Contains(t, err.Error(), "already exists")
	})

	t.Run("force overwrites", func(t *testing.T) {
		require.NoError(t, RunInit(configPath, true))
	})
}

func TestConfigureLogging_VerboseWins(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	configureLogging(config.LoggingConfig{Level: "error"}, false)
	require.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	require.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))

	configureLogging(config.LoggingConfig{Level: "error"}, true)
	require.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestOpenStore_RequiresPath(t *testing.T) {
	_, err := openStore(&config.Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "store.path")
}
