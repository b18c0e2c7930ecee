// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"pacup-cli/internal/config"
	"pacup-cli/internal/pacscript"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// showRepology displays the aggregator's filtered records per pacscript
	showRepology bool
	// debug enables debug logging
	debug bool
	// verbose enables verbose output
	verbose bool
	// assumeYes skips all confirmation prompts
	assumeYes bool
	// keep retains downloaded artifacts after each update
	keep bool
	// shipChanges commits each updated pacscript on a ship branch
	shipChanges bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "pacup <pacscript>...",
		Short: "Update pacscript package manifests",
		Long: TitleStyle.Render("pacup") + SubtitleStyle.Render(" - Pacscript Updater") + `

pacup updates pacscript package manifests: it resolves the latest upstream
version of each package through the Repology aggregator, downloads the new
release artifact to compute its SHA-256 hash, rewrites the version and hash
lines in place, and installs the result with pacstall for verification.

` + SubtitleStyle.Render("Examples:") + `
  pacup jq.pacscript                Update a single pacscript
  pacup packages/*.pacscript        Update a whole tree
  pacup -r jq.pacscript             Show the aggregator records considered
  pacup -y -s jq.pacscript          Update unattended and commit the change`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpdate,
	}
)

func init() {
	rootCmd.Flags().BoolVarP(&showRepology, "show-repology", "r", false, "show the filtered aggregator records for each pacscript")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "assume yes to all confirmation prompts")
	rootCmd.Flags().BoolVarP(&keep, "keep", "k", false, "keep downloaded artifacts after updating")
	rootCmd.Flags().BoolVarP(&shipChanges, "ship", "s", false, "commit each updated pacscript on a ship-<pkgname> branch")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pacup/config.yaml)")

	// Positional args are always pacscript files.
	rootCmd.ValidArgsFunction = completePacscriptPaths

	rootCmd.AddCommand(newCompletionCommand())
}

// completePacscriptPaths restricts shell completion of positional args to
// .pacscript files.
func completePacscriptPaths(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{strings.TrimPrefix(pacscript.Suffix, ".")}, cobra.ShellCompDirectiveFilterFileExt
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// runUpdate validates the batch, loads configuration, and hands off to the
// update pipeline.
func runUpdate(cmd *cobra.Command, args []string) error {
	// Input errors fail the whole batch before any work starts.
	if err := validatePaths(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}

	logger := log.Default()
	switch {
	case debug:
		logger.SetLevel(log.DebugLevel)
	case verbose || cfg.UI.Verbose:
		logger.SetLevel(log.InfoLevel)
	default:
		logger.SetLevel(log.WarnLevel)
	}

	u := newUpdater(cfg, logger)
	u.stdin = cmd.InOrStdin()
	u.stdout = cmd.OutOrStdout()
	u.showRepology = showRepology
	u.assumeYes = assumeYes
	u.keep = keep
	u.shipChanges = shipChanges

	// Pipeline errors carry their own exit semantics; don't repeat them as usage.
	cmd.SilenceUsage = true

	return u.run(cmd.Context(), args)
}

// validatePaths rejects the batch when any path is not an updatable pacscript.
func validatePaths(paths []string) error {
	for _, path := range paths {
		if err := pacscript.ValidatePath(path); err != nil {
			return err
		}
	}
	return nil
}
