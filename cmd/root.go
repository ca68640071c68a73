package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"thor/internal/banner"
	"thor/internal/cli"
	"thor/internal/runner"
)

// Config keys. Each can also be set as THOR_<KEY> in the environment or in
// the config file.
const (
	keyProcesses = "processes"
	keyRequests  = "requests"
	keyVerbose   = "verbose"
	keyIsolation = "isolation"
	keyLogLevel  = "log-level"
)

// UsageError means the command line could not be understood. It is reported
// with the usage text instead of a bare message.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	if e.Err == nil {
		return "usage"
	}
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// Execute runs thor with the process arguments and returns its exit status.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	// cobra falls back to os.Args when given nil.
	if args == nil {
		args = []string{}
	}
	rootCmd := newRootCmd(args)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	var uerr *UsageError
	if errors.As(err, &uerr) {
		fmt.Fprint(stderr, usage(rootCmd.Name()))
		return 1
	}
	fmt.Fprintf(stderr, "%s: %v\n", rootCmd.Name(), err)
	return 1
}

func newRootCmd(args []string) *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "thor [-p PROCESSES -r REQUESTS -v] URL",
		Short: "thor - minimal HTTP load generator",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return &UsageError{Err: errors.New("missing URL")}
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, args[0])
			if err != nil {
				return err
			}
			return cli.Start(cmd.Context(), cfg, cli.Options{
				Isolation: v.GetString(keyIsolation),
				LogLevel:  v.GetString(keyLogLevel),
				Out:       cmd.OutOrStdout(),
				ErrOut:    cmd.ErrOrStderr(),
			})
		},
	}

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(cmd.OutOrStdout(), banner.GetString(cmd.OutOrStdout()))
		fmt.Fprint(cmd.OutOrStdout(), usage(cmd.Name()))
	})

	// pflag stops at the first error, so a -h after a bad flag would be
	// missed without looking at the raw arguments.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if helpRequested(args) {
			return cmd.Help()
		}
		if strings.HasPrefix(err.Error(), "unknown") {
			return &UsageError{Err: err}
		}
		return err
	})

	addFlags(rootCmd.Flags(), v, &cfgFile)
	return rootCmd
}

func addFlags(flags *pflag.FlagSet, v *viper.Viper, cfgFile *string) {
	// Everything after the first positional argument belongs to the URL slot.
	flags.SetInterspersed(false)
	flags.IntP(keyProcesses, "p", 1, "Number of processes to utilize")
	flags.IntP(keyRequests, "r", 1, "Number of requests per process")
	flags.BoolP(keyVerbose, "v", false, "Display verbose output")
	flags.StringVar(cfgFile, "config", "", "config file (default is $HOME/.thor.yaml)")

	v.SetDefault(keyIsolation, cli.IsolationProcess)
	v.SetDefault(keyLogLevel, "warn")
	for _, key := range []string{keyProcesses, keyRequests, keyVerbose} {
		v.BindPFlag(key, flags.Lookup(key))
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("thor")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(".thor")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig reads the run settings strictly. viper's GetInt turns a value
// such as THOR_PROCESSES=abc into 0, which must fail instead.
func loadConfig(v *viper.Viper, url string) (runner.Config, error) {
	processes, err := cast.ToIntE(v.Get(keyProcesses))
	if err != nil {
		return runner.Config{}, fmt.Errorf("invalid %s: %w", keyProcesses, err)
	}
	requests, err := cast.ToIntE(v.Get(keyRequests))
	if err != nil {
		return runner.Config{}, fmt.Errorf("invalid %s: %w", keyRequests, err)
	}
	verbose, err := cast.ToBoolE(v.Get(keyVerbose))
	if err != nil {
		return runner.Config{}, fmt.Errorf("invalid %s: %w", keyVerbose, err)
	}

	return runner.Config{
		URL:       url,
		Processes: processes,
		Requests:  requests,
		Verbose:   verbose,
	}, nil
}

// helpRequested reports whether -h or --help appears among the leading flags,
// i.e. before the first positional argument.
func helpRequested(args []string) bool {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-h" || a == "--help":
			return true
		case a == "--processes" || a == "--requests" || a == "--config":
			i++
		case strings.HasPrefix(a, "--"):
		case len(a) > 1 && strings.HasPrefix(a, "-"):
			if clusterTakesNext(a[1:]) {
				i++
			}
		default:
			return false
		}
	}
	return false
}

// clusterTakesNext reports whether a shorthand cluster such as "vp" ends in
// a flag whose value is the next argument. In "p3" or "vpr" the value is
// attached, so nothing more is consumed.
func clusterTakesNext(cluster string) bool {
	for i, c := range cluster {
		if c == 'p' || c == 'r' {
			return i == len(cluster)-1
		}
	}
	return false
}

func usage(name string) string {
	return fmt.Sprintf(`Usage: %s [-p PROCESSES -r REQUESTS -v] URL
    -h              Display help message
    -v              Display verbose output

    -p  PROCESSES   Number of processes to utilize (1)
    -r  REQUESTS    Number of requests per process (1)
`, name)
}
