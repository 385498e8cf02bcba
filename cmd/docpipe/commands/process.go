package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docpipe/internal/services"
)

// ProcessCmd implements the 'process' command.
type ProcessCmd struct {
	Repository string `arg:"" help:"Repository to process, bare name or org/name"`
	NoExport   bool   `help:"Skip writing export artifacts"`
	JSON       bool   `help:"Print the run result as JSON"`
}

func (p *ProcessCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := rt.runner.ProcessRepository(ctx, services.ProcessRequest{
		Repository: p.Repository,
		Export:     !p.NoExport,
	})
	if err != nil {
		return err
	}

	if p.JSON {
		return printJSON(res)
	}

	fmt.Printf("Processed %s: %d documents in %s\n", res.Repository, res.Documents, res.Duration.Round(roundTo))
	if res.Warnings > 0 {
		fmt.Printf("%d warnings (rerun with -v for details)\n", res.Warnings)
	}
	if res.Stored > 0 {
		fmt.Printf("Stored %d documents\n", res.Stored)
	}
	if res.Exported {
		fmt.Printf("Export written to %s\n", rt.cfg.Export.Directory)
	}
	return nil
}
