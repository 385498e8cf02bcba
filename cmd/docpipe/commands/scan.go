package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
)

// ScanCmd implements the 'scan' command.
type ScanCmd struct {
	JSON bool `help:"Print the scan result as JSON"`
}

func (s *ScanCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := rt.runner.ScanOrganization(ctx)
	if err != nil {
		return err
	}

	if s.JSON {
		return printJSON(res)
	}

	fmt.Printf("Scanned %s: %d repositories, %d with document configuration\n",
		res.Organization, res.Repositories, res.WithConfig)
	if res.Archived > 0 {
		fmt.Printf("%d archived repositories skipped\n", res.Archived)
	}
	if res.Failed > 0 {
		fmt.Printf("%d repositories failed (rerun with -v for details)\n", res.Failed)
	}
	return nil
}
