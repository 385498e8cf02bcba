package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	JSON bool `help:"Print the listing as JSON"`
}

func (l *ListCmd) Run(_ *Global, root *CLI) error {
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

	summaries, err := store.ListSummaries(context.Background())
	if err != nil {
		return err
	}

	if l.JSON {
		return printJSON(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No repositories stored yet (run 'docpipe process' or 'docpipe scan' first)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tDOCUMENTS\tLAST PROCESSED")
	for _, s := range summaries {
		last := "never"
		if s.LastProcessedAt != nil {
			last = s.LastProcessedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.FullName, s.DocumentCount, last)
	}
	return w.Flush()
}
