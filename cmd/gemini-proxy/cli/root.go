package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/gemini-proxy/internal/server"
	"github.com/r9s-ai/gemini-proxy/internal/version"
)

func Run(args []string) error {
	root := newRootCmd(os.Stdout)
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && args[0] != "-h" && args[0] != "--help") {
		// Bare flags (or nothing) mean `serve`.
		args = append([]string{"serve"}, args...)
	}
	root.SetArgs(args)
	return root.Execute()
}

type rootOptions struct {
	cfgPath string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "gemini-proxy",
		Short:         "Forward prompts to Gemini with a server-held API key",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "", "config file (.yaml or .toml); empty uses defaults and env")
	cmd.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proxy server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(opts.cfgPath)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Get())
			return err
		},
	}
}
