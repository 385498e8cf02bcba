package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/services"
)

// ExportCmd implements the 'export' command. It works entirely from the
// store, so no host credentials are needed.
type ExportCmd struct {
	Repository string `arg:"" help:"Repository to export, bare name or org/name"`
	JSON       bool   `help:"Print the export result as JSON"`
}

func (e *ExportCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("store close failed", logfields.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := services.NewRunner(cfg, nil).WithStore(store)
	res, err := runner.ExportStored(ctx, e.Repository)
	if err != nil {
		return err
	}

	if e.JSON {
		return printJSON(res)
	}

	fmt.Printf("Exported %d stored documents for %s to %s\n", res.Documents, res.Repository, res.Directory)
	return nil
}
