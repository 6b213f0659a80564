// Command rocketreaders serves the reading assessment API and checks single
// reading attempts from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/rocketreaders/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rocketreaders: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	verbose bool
	quiet   bool

	// level is shared with the serve command so config reloads can change it.
	level *slog.LevelVar
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:   "rocketreaders",
		Short: "Detect reading errors in children's oral reading",
		Long: `RocketReaders compares what a child read aloud with the passage they were
asked to read and reports omissions, mispronunciations and hesitations along
with fluency scores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.setupLogging(cmd)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")

	root.AddCommand(newServeCmd(opts), newCheckCmd())
	return root
}

func (o *rootOptions) setupLogging(cmd *cobra.Command) {
	switch {
	case o.verbose:
		o.level.Set(slog.LevelDebug)
	case o.quiet:
		o.level.Set(slog.LevelError)
	default:
		o.level.Set(slog.LevelInfo)
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: o.level})
	slog.SetDefault(slog.New(handler))
}

// applyConfigLevel uses the configured log level unless a flag overrides it.
func (o *rootOptions) applyConfigLevel(l config.LogLevel) {
	if o.verbose || o.quiet || l == "" {
		return
	}
	o.level.Set(l.Slog())
}
