package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cursorstudio/cursorproxy/internal/ca"
	"github.com/cursorstudio/cursorproxy/internal/cliconf"
	"github.com/cursorstudio/cursorproxy/internal/proxyconf"
)

func newTrustCACmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "trust-ca",
		Short: "Print or export the CA certificate for trust-store installation",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cliconf.BindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runTrustCA(v) },
	}
	cmd.Flags().Bool("show", false, "print the certificate to stdout (default if --output is unset)")
	cmd.Flags().String("output", "", "write the certificate to this path instead of stdout")
	cliconf.AddConfigFlag(cmd)
	return cmd
}

func runTrustCA(v *viper.Viper) error {
	cfg := proxyconf.LoadConfig(v)
	material, err := ca.LoadOrGenerate(cfg.CACertPath, cfg.CAKeyPath, false)
	if err != nil {
		return fmt.Errorf("trust-ca: %w", err)
	}

	out := v.GetString("output")
	show := v.GetBool("show") || out == ""

	if out != "" {
		if err := os.WriteFile(out, []byte(material.ExportPEM()), 0o644); err != nil {
			return fmt.Errorf("trust-ca: write %s: %w", out, err)
		}
		fmt.Printf("wrote CA certificate to %s\n", out)
	}
	if show {
		if _, err := io.WriteString(os.Stdout, material.ExportPEM()); err != nil {
			return err
		}
	}
	return nil
}
