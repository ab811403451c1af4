package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/gemini-proxy/internal/config"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [config]",
		Short: "Validate configuration and exit (no network)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.cfgPath
			// nginx-like: `gemini-proxy check ./gp.yaml`
			if len(args) == 1 {
				path = args[0]
			}
			return runConfigCheck(cmd.OutOrStdout(), path)
		},
	}
}

func runConfigCheck(out io.Writer, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	_, _ = fmt.Fprintln(out, "ok: config")
	if cfg.HasCredential() {
		_, _ = fmt.Fprintln(out, "ok: credential")
	} else {
		_, _ = fmt.Fprintf(out, "warn: credential missing (%s); POST %s will return 500\n", config.APIKeyEnv, cfg.Handler.Path)
	}
	_, _ = fmt.Fprintf(out, "ok: models draft=%s final=%s\n", cfg.Models.Draft, cfg.Models.Final)
	_, _ = fmt.Fprintln(out, "configuration ok")
	return nil
}
