package main

import (
	"cardarena/internal/config"
	"cardarena/internal/logging"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

type app struct {
	cfgFile string
	cfg     *config.Config
	log     hclog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "arena",
		Short:         "Two-player card battle server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New("arena", cfg.Log.Level, cfg.Log.JSON, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .arena.yaml in . or $HOME)")

	root.AddCommand(newServeCmd(a), newMigrateCmd(a), newTokenCmd(a))
	return root
}
