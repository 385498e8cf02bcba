package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for the generated config file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	// If the user specified an output directory, place the config there as "docpipe.yaml".
	if i.Output != "" {
		return RunInit(filepath.Join(i.Output, "docpipe.yaml"), i.Force)
	}
	return RunInit(root.Config, i.Force)
}

func RunInit(configPath string, force bool) error {
	fmt.Println("Initializing docpipe project")
	fmt.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		fmt.Println("Initialization failed")
		return err
	}
	fmt.Println("initialized successfully")
	fmt.Println("Edit the configuration, then run 'docpipe scan' to discover repositories.")
	return nil
}
