package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asynkron/edpatch/internal/config"
	"github.com/asynkron/edpatch/internal/logging"
	"github.com/asynkron/edpatch/internal/tui"
)

// usageError marks failures caused by bad invocation; Run maps them to exit
// code 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// errReported means the command already printed its own diagnostics.
var errReported = errors.New("reported")

// app carries state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	stdout io.Writer
	stderr io.Writer

	envFile  string
	logLevel string
	logFile  string
	plain    bool

	options  config.Options
	logger   logging.Logger
	closeLog func() error
}

// Run executes edpatch with the provided CLI arguments and returns a
// POSIX-style exit code: 0 on success, 1 on failure, 2 on usage errors.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	a := &app{stdout: stdout, stderr: stderr, closeLog: func() error { return nil }}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	_ = a.closeLog()

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errReported):
		return 1
	case isUsageError(err):
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

func isUsageError(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	// cobra reports unknown subcommands as plain errors.
	return strings.HasPrefix(err.Error(), "unknown command")
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "edpatch [command]",
		Short:         "Apply ed-style diff scripts and restore protected Python modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading EDPATCH_* variables")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides "+config.EnvLogLevel)
	flags.StringVar(&a.logFile, "log-file", "", "append logs to this file instead of stderr; overrides "+config.EnvLogFile)
	flags.BoolVar(&a.plain, "plain", false, "disable colors and spinners; also "+config.EnvPlain)

	root.AddCommand(
		newApplyCmd(a),
		newCheckCmd(a),
		newFormatCmd(a),
		newRestoreCmd(a),
		newDoctorCmd(a),
	)
	return root
}

// setup loads .env and the environment, applies flag overrides and opens the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	opts, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		opts.LogLevel = a.logLevel
	}
	if a.logFile != "" {
		opts.LogFile = a.logFile
	}
	if a.plain || !isTerminal(a.stdout) {
		opts.Plain = true
	}
	opts.SetDefaults()
	a.options = opts

	level, ok := logging.ParseLevel(opts.LogLevel)
	if !ok {
		return usageError{err: fmt.Errorf("unknown log level %q", opts.LogLevel)}
	}
	logger, closeLog, err := logging.Open(level, opts.LogFile, a.stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog

	tui.Configure(opts.Plain)
	cmd.SetContext(logging.WithTraceID(cmd.Context(), logging.NewTraceID()))
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// exactArgs wraps cobra.ExactArgs so argument count errors are usage errors.
func exactArgs(n int) cobra.PositionalArgs {
	check := cobra.ExactArgs(n)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}
