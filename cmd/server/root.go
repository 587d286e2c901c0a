package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"tour-video-backend/internal/config"
)

type commandContext struct {
	v          *viper.Viper
	configFlag string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if path := strings.TrimSpace(c.configFlag); path != "" {
			c.v.SetConfigFile(path)
			if err := c.v.ReadInConfig(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config, c.configErr = config.Load(c.v)
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Tour video backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("mock", false, "Simulate video generation instead of calling the provider")
	_ = ctx.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = ctx.v.BindPFlag("runway.mock", flags.Lookup("mock"))

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newOrderStatusCommand(ctx))
	rootCmd.AddCommand(newAdminFeedCommand(ctx))
	rootCmd.AddCommand(newPollCommand(ctx))

	return rootCmd
}
