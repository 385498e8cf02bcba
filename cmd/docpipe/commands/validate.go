package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	derrors "git.home.luguber.info/inful/docpipe/internal/errors"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct {
	Repository string `arg:"" help:"Repository to validate, bare name or org/name"`
	JSON       bool   `help:"Print the validation result as JSON"`
}

func (v *ValidateCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := rt.runner.ValidateRepository(ctx, v.Repository)
	if err != nil {
		return err
	}

	if v.JSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		project := res.Project
		if project == "" {
			project = "(unnamed project)"
		}
		fmt.Printf("%s: %s, %d documents\n", res.Repository, project, res.Documents)
		for _, warning := range res.Result.Warnings {
			fmt.Printf("warning: %s\n", warning)
		}
		for _, failure := range res.Result.Errors {
			fmt.Printf("error: %s\n", failure)
		}
	}

	if !res.Result.Valid() {
		return derrors.New(derrors.CategoryValidation, derrors.SeverityError,
			fmt.Sprintf("document configuration has %d errors", len(res.Result.Errors)))
	}
	if !v.JSON {
		fmt.Println("Document configuration is valid")
	}
	return nil
}
