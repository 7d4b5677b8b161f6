package config

import "github.com/spf13/cobra"

// RegisterFlags registers the global CLI flags on the root command.
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("proxy", "", "HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", "30s", "Per-navigation timeout")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
}
