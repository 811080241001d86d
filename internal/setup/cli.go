package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewCommand returns the "setup" command tree mounted by the MCP server binary.
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the SCDAid MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "client config file (default: the desktop client's location for this OS)")

	resolve := func() (string, error) {
		if configPath != "" {
			return configPath, nil
		}
		return DesktopConfigPath()
	}

	cmd.AddCommand(newDesktopCommand(resolve), newRemoveCommand(resolve), newStatusCommand(resolve), newValidateCommand(resolve))
	return cmd
}

func newDesktopCommand(resolve func() (string, error)) *cobra.Command {
	var opts Options
	var yes bool

	cmd := &cobra.Command{
		Use:   "desktop",
		Short: "Add or update the scdaid entry in the client config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			if opts.BinaryPath == "" {
				if exe, err := os.Executable(); err == nil {
					opts.BinaryPath = exe
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file:   %s\n", path)
			fmt.Fprintf(out, "Server binary: %s\n", opts.BinaryPath)
			if opts.DataDir != "" {
				fmt.Fprintf(out, "Data dir:      %s\n", opts.DataDir)
			}

			if !yes && !confirm(cmd.InOrStdin(), out, "Proceed with configuration? [Y/n]: ", true) {
				fmt.Fprintln(out, "Configuration cancelled.")
				return nil
			}

			if _, err := Register(path, opts); err != nil {
				return fmt.Errorf("failed to configure desktop client: %w", err)
			}
			fmt.Fprintln(out, "✓ scdaid registered. Restart the desktop client to load it.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.BinaryPath, "binary", "b", "", "server binary path (default: this executable)")
	cmd.Flags().StringVarP(&opts.DataDir, "data-dir", "d", "", "data directory for feedback and exports")
	cmd.Flags().StringVar(&opts.PhenotypeURL, "phenotype-url", "", "CYP2D6 phenotype prediction service URL")
	cmd.Flags().StringVar(&opts.Language, "language", "", "display language, en or ar")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newRemoveCommand(resolve func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Remove the scdaid entry from the client config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			removed, err := Unregister(path)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ scdaid removed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "scdaid was not registered")
			}
			return nil
		},
	}
}

func newStatusCommand(resolve func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			status, err := GetStatus(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", status.ConfigPath)
			fmt.Fprintf(out, "Registered:  %s\n", mark(status.Registered))
			if status.Registered {
				fmt.Fprintf(out, "Binary:      %s (%s)\n", status.BinaryPath, mark(status.BinaryFound))
			}
			fmt.Fprintf(out, "Data dir:    %s (%s)\n", status.DataDir, mark(status.DataDirFound))
			fmt.Fprintf(out, "Feedback DB: %s\n", mark(status.FeedbackDB))
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "  ⚠ %s\n", issue)
			}
			return nil
		},
	}
}

func newValidateCommand(resolve func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Exit non-zero when the registration is unusable",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			ok, issues := Validate(path)
			if !ok {
				return fmt.Errorf("configuration has issues: %s", strings.Join(issues, "; "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		},
	}
}

func confirm(in io.Reader, out io.Writer, prompt string, defaultYes bool) bool {
	fmt.Fprint(out, prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.TrimSpace(strings.ToLower(response)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
