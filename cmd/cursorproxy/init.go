package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cursorstudio/cursorproxy/internal/ca"
	"github.com/cursorstudio/cursorproxy/internal/cliconf"
	"github.com/cursorstudio/cursorproxy/internal/proxyconf"
)

func newInitCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate CA material if it does not already exist",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cliconf.BindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runInit(v) },
	}
	cmd.Flags().Bool("force", false, "regenerate CA material even if it already exists, overwriting the existing cert/key files")
	cliconf.AddConfigFlag(cmd)
	cliconf.AddLoggingFlags(cmd)
	return cmd
}

func runInit(v *viper.Viper) error {
	cliconf.SetupLogging(v)
	cfg := proxyconf.LoadConfig(v)

	material, err := ca.LoadOrGenerate(cfg.CACertPath, cfg.CAKeyPath, v.GetBool("force"))
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Printf("CA ready: %s (expires %s)\n", cfg.CACertPath, material.Cert.NotAfter.Format("2006-01-02"))
	return nil
}
