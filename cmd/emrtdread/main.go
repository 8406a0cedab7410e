// Command emrtdread reads an ICAO 9303 eMRTD chip over a PC/SC reader:
// it establishes BAC or PACE access, reads the LDS data groups listed in
// EF.COM (DG1 alone when none are listed), verifies Active Authentication
// when DG15 is present,
// and renders the result as a set of tables.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/emrtd/cmd/emrtdread/internal/config"
)

var (
	verbose    bool
	logFormat  string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "emrtdread",
	Short: "ICAO 9303 eMRTD chip reader",
	Long: `emrtdread reads the chip embedded in an ICAO 9303 travel document
over a PC/SC contactless reader.

It establishes BAC or PACE access using the credential in a YAML session
profile, reads the LDS data groups present, and verifies Active
Authentication when the document supports it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

func configureLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to session profile YAML (required by read/verify-aa)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// loadSessionConfig loads and validates the session profile, returning an
// error when the --config path is missing or the file fails to
// parse/validate.
func loadSessionConfig() (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(configPath)
}
