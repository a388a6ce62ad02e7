package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cursorstudio/cursorproxy/internal/cliconf"
	"github.com/cursorstudio/cursorproxy/internal/injection"
)

// newInjectCmd groups the injection policy's mutation sub-operations:
// enable, disable, status, prompt, version, add-context, clear-context, and
// reload.
func newInjectCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Manage the gRPC injection policy",
	}
	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error { return cliconf.BindViper(c, v) }
	cliconf.AddConfigFlag(cmd)

	cmd.AddCommand(
		injectEnableCmd(v),
		injectDisableCmd(v),
		injectStatusCmd(v),
		injectPromptCmd(v),
		injectVersionCmd(v),
		injectAddContextCmd(v),
		injectClearContextCmd(v),
		injectReloadCmd(v),
	)
	return cmd
}

func loadPolicy(v *viper.Viper) (*injection.Policy, error) {
	return injection.Load(injectionPolicyPath(v))
}

func injectEnableCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable injection",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			p.PolicyFile.Enabled = true
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Println("injection enabled (a running proxy picks this up on its next policy-file poll)")
			return nil
		},
	}
}

func injectDisableCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable injection",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			p.PolicyFile.Enabled = false
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Println("injection disabled")
			return nil
		},
	}
}

func injectStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current injection policy",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			fmt.Printf("Enabled: %v\n", p.IsEnabled())
			if p.SystemPrompt != "" {
				first, _, _ := strings.Cut(p.SystemPrompt, "\n")
				fmt.Printf("System prompt: %s\n", first)
			} else {
				fmt.Println("System prompt: (not set)")
			}
			if v := p.SpoofedVersion(); v != "" {
				fmt.Printf("Spoofed version: %s\n", v)
			} else {
				fmt.Println("Spoofed version: (not set)")
			}
			fmt.Printf("Context files: %d\n", len(p.ContextFiles))
			for _, f := range p.ContextFiles {
				fmt.Printf("  %s\n", f)
			}
			headers := p.HeaderOverrides()
			fmt.Printf("Header overrides: %d\n", len(headers))
			for k, hv := range headers {
				fmt.Printf("  %s: %s\n", k, hv)
			}
			return nil
		},
	}
}

func injectPromptCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <text|@file>",
		Short: "Set the system prompt injected into requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			text := args[0]
			if strings.HasPrefix(text, "@") {
				raw, err := os.ReadFile(text[1:])
				if err != nil {
					return fmt.Errorf("inject prompt: read file: %w", err)
				}
				text = string(raw)
			}
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			p.PolicyFile.SystemPrompt = text
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Printf("system prompt set (%d chars)\n", len(text))
			return nil
		},
	}
}

func injectVersionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "version <value>",
		Short: "Spoof the X-Cursor-Client-Version header",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			p.PolicyFile.SpoofVersion = args[0]
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Printf("version spoofing set to %s\n", args[0])
			return nil
		},
	}
}

func injectAddContextCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "add-context <path>",
		Short: "Add a file whose contents are injected into requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("inject add-context: %w", err)
			}
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			for _, existing := range p.ContextFiles {
				if existing == path {
					fmt.Println("already present")
					return nil
				}
			}
			p.PolicyFile.ContextFiles = append(p.PolicyFile.ContextFiles, path)
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Printf("added %s\n", path)
			return nil
		},
	}
}

func injectClearContextCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-context",
		Short: "Remove all configured context files",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			p.PolicyFile.ContextFiles = nil
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Println("context files cleared")
			return nil
		},
	}
}

func injectReloadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Show the on-disk injection policy that the running proxy reloads on its own",
		Long: `The running proxy re-reads its injection policy from disk on a
timer; this command just reports what is currently on disk so the operator
can confirm a prior edit took effect.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := loadPolicy(v)
			if err != nil {
				return err
			}
			fmt.Printf("on-disk policy: enabled=%v, %d context file(s)\n", p.IsEnabled(), len(p.ContextFiles))
			return nil
		},
	}
}
