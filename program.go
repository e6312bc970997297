package hookrun

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/raphi011/hookrun/client"
	"github.com/urfave/cli/v2"
)

// bootstrapArgs are the arguments needed before plugins are loaded.
type bootstrapArgs struct {
	configs      []string
	noUserConfig bool
	noPlugins    bool
}

// scanBootstrapArgs picks the config related flags out of args so that
// plugins can be loaded before the full command line is parsed.
func scanBootstrapArgs(args []string) bootstrapArgs {
	b := bootstrapArgs{configs: []string{}}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--":
			return b
		case arg == "--config" || arg == "-config":
			if i+1 < len(args) {
				b.configs = append(b.configs, args[i+1])
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			b.configs = append(b.configs, strings.TrimPrefix(arg, "--config="))
		case arg == "--no-user-config":
			b.noUserConfig = true
		case arg == "--no-plugins":
			b.noPlugins = true
		}
	}

	return b
}

// runFlags holds the runner settings given on the command line.
type runFlags struct {
	verbose  bool
	quiet    bool
	failfast bool
	catch    bool
	buffer   bool
}

// verbosity returns the verbosity selected by -v/-q, or current if
// neither was given.
func (f *runFlags) verbosity(current int) int {
	switch {
	case f.verbose && f.quiet:
		return 1
	case f.verbose:
		return 2
	case f.quiet:
		return 0
	}
	return current
}

// runSettings are the runner switches, each taken from its flag or,
// if the flag was not given, from the [unittest] section.
type runSettings struct {
	failfast bool
	catch    bool
	buffer   bool
}

func (s *Session) runSettings(flags *runFlags) (runSettings, error) {
	section := s.Config(GlobalSection)
	settings := runSettings{}

	for _, setting := range []struct {
		key  string
		flag bool
		dest *bool
	}{
		{key: "failfast", flag: flags.failfast, dest: &settings.failfast},
		{key: "catch", flag: flags.catch, dest: &settings.catch},
		{key: "buffer", flag: flags.buffer, dest: &settings.buffer},
	} {
		if setting.flag {
			*setting.dest = true
			continue
		}

		v, err := section.AsTri(setting.key)
		if err != nil {
			return runSettings{}, err
		}
		*setting.dest = v != nil && *v
	}

	return settings, nil
}

var reservedFlags = []string{
	"verbose", "v", "quiet", "q", "config", "no-user-config", "no-plugins",
	"failfast", "f", "catch", "c", "buffer", "b", "help", "h",
	"start-directory", "s", "pattern", "p", "top-level-directory", "t",
}

// Main parses args (including the program name), runs the selected
// command and returns the process exit code.
func (s *Session) Main(args []string) int {
	boot := scanBootstrapArgs(args[min(1, len(args)):])

	if err := s.LoadPlugins(boot.noPlugins, boot.noUserConfig, boot.configs); err != nil {
		fmt.Fprintln(s.stderr, err)
		return 1
	}

	code := 0
	flags := &runFlags{}

	app := &cli.App{
		Name:                      "hookrun",
		Usage:                     "run registered test modules",
		ArgsUsage:                 "[test names...]",
		Writer:                    s.stdout,
		ErrWriter:                 s.stderr,
		UseShortOptionHandling:    true,
		HideHelpCommand:           true,
		DisableSliceFlagSeparator: true,
		Flags:                     append(s.runCLIFlags(flags), s.optionFlags(s.options)...),
		Action: s.runAction(flags, &code, func(c *cli.Context) (Test, error) {
			if c.NArg() > 0 {
				return s.Loader().LoadTestsFromNames(c.Args().Slice(), nil)
			}
			return s.Loader().LoadAll(), nil
		}),
		Commands: []*cli.Command{
			s.discoverCommand(flags, &code),
			s.serveCommand(),
			s.runsCommand(),
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}

	if err := app.Run(args); err != nil {
		fmt.Fprintln(s.stderr, err)
		return 1
	}

	return code
}

func (s *Session) runCLIFlags(flags *runFlags) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print test result for each test", Destination: &flags.verbose},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only print errors and the summary", Destination: &flags.quiet},
		&cli.StringSliceFlag{Name: "config", Usage: "config files or directories to load"},
		&cli.BoolFlag{Name: "no-user-config", Usage: "do not load the config in the home directory"},
		&cli.BoolFlag{Name: "no-plugins", Usage: "do not load any plugins"},
		&cli.BoolFlag{Name: "failfast", Aliases: []string{"f"}, Usage: "stop on first failure or error", Destination: &flags.failfast},
		&cli.BoolFlag{Name: "catch", Aliases: []string{"c"}, Usage: "catch ctrl-c and display results so far", Destination: &flags.catch},
		&cli.BoolFlag{Name: "buffer", Aliases: []string{"b"}, Usage: "keep test logs out of the live output", Destination: &flags.buffer},
	}
}

// optionFlags turns options added by plugins into cli flags. Options
// clashing with a built in flag are left out.
func (s *Session) optionFlags(options []CommandOption) []cli.Flag {
	flags := []cli.Flag{}

	for _, o := range options {
		if slices.Contains(reservedFlags, o.Long) || slices.Contains(reservedFlags, o.Short) {
			s.log.Warn("plugin option clashes with a built in flag", "option", o.Name())
			continue
		}

		if o.List != nil {
			flags = append(flags, listFlags(o)...)
			continue
		}

		aliases := []string{}
		if o.Long != "" && o.Short != "" {
			aliases = append(aliases, o.Short)
		}

		flags = append(flags, &cli.BoolFlag{Name: o.Name(), Aliases: aliases, Usage: o.Help})
	}

	return flags
}

// listValue appends every value given for a list option to its
// destination, in command line order.
type listValue struct {
	dest *[]string
}

func (v *listValue) Set(value string) error {
	*v.dest = append(*v.dest, value)
	return nil
}

func (v *listValue) String() string {
	if v.dest == nil {
		return ""
	}
	return strings.Join(*v.dest, ", ")
}

// listFlags returns one flag per name of a list option. Both flags share
// the destination so that short and long forms can be mixed.
func listFlags(o CommandOption) []cli.Flag {
	value := &listValue{dest: o.List}

	if o.Long == "" || o.Short == "" {
		return []cli.Flag{&cli.GenericFlag{Name: o.Name(), Usage: o.Help, Value: value}}
	}

	return []cli.Flag{
		&cli.GenericFlag{Name: o.Long, Usage: o.Help + " (-" + o.Short + ")", Value: value},
		&cli.GenericFlag{Name: o.Short, Usage: o.Help, Value: value, Hidden: true},
	}
}

// applyOptions calls the callbacks of the given plugin switches, in the
// order the options were added. List options are filled while parsing.
func applyOptions(c *cli.Context, options []CommandOption) error {
	for _, o := range options {
		if o.List != nil || slices.Contains(reservedFlags, o.Long) || slices.Contains(reservedFlags, o.Short) || !c.IsSet(o.Name()) {
			continue
		}

		if err := o.Callback(); err != nil {
			return fmt.Errorf("option --%s: %w", o.Name(), err)
		}
	}

	return nil
}

func (s *Session) runAction(flags *runFlags, code *int, load func(c *cli.Context) (Test, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := applyOptions(c, s.options); err != nil {
			return err
		}
		if c.Command != nil && c.Command.Name == "discover" {
			if err := applyOptions(c, s.discoveryOptions); err != nil {
				return err
			}
		}

		s.SetVerbosity(flags.verbosity(s.verbosity))

		settings, err := s.runSettings(flags)
		if err != nil {
			return err
		}

		s.PluginsLoaded()

		test, err := load(c)
		if err != nil {
			return err
		}

		runner := s.NewRunner()
		runner.Failfast = settings.failfast
		runner.Buffer = settings.buffer

		if settings.catch {
			s.interrupts.Install()
			defer s.interrupts.Uninstall()
		}

		result := runner.Run(test)
		if !result.WasSuccessful() {
			*code = 1
		}

		return nil
	}
}

func (s *Session) discoverCommand(flags *runFlags, code *int) *cli.Command {
	cmdFlags := append(s.runCLIFlags(flags),
		&cli.StringFlag{Name: "start-directory", Aliases: []string{"s"}, Value: ".", Usage: "directory to start discovery"},
		&cli.StringFlag{Name: "pattern", Aliases: []string{"p"}, Value: DefaultPattern, Usage: "pattern to match test files"},
		&cli.StringFlag{Name: "top-level-directory", Aliases: []string{"t"}, Usage: "top level directory of the project"},
	)
	cmdFlags = append(cmdFlags, s.optionFlags(s.options)...)
	cmdFlags = append(cmdFlags, s.optionFlags(s.discoveryOptions)...)

	return &cli.Command{
		Name:                   "discover",
		Usage:                  "discover and run tests declared in matching files",
		UseShortOptionHandling: true,
		Flags:                  cmdFlags,
		Action: s.runAction(flags, code, func(c *cli.Context) (Test, error) {
			return s.Loader().Discover(c.String("start-directory"), c.String("pattern"), c.String("top-level-directory"))
		}),
	}
}

func (s *Session) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run tests on request or on a schedule and keep their history",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "port to listen on"},
			&cli.StringFlag{Name: "db", Value: s.Config("history").AsStr("path", "hookrun.db"), Usage: "sqlite database of the run history"},
		},
		Action: func(c *cli.Context) error {
			s.PluginsLoaded()

			srv, err := s.NewServer(c.String("db"), c.Int("port"))
			if err != nil {
				return err
			}
			defer srv.Close()

			if _, err := srv.ScheduleFromConfig(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
			defer stop()

			if err := srv.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
	}
}

func (s *Session) runsCommand() *cli.Command {
	return &cli.Command{
		Name:      "runs",
		Usage:     "show runs stored by a server",
		ArgsUsage: "[run id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "http://localhost:8080", Usage: "address of the server"},
		},
		Action: func(c *cli.Context) error {
			cl := client.New(c.String("host"), &http.Client{Timeout: 30 * time.Second})

			if c.NArg() == 0 {
				runs, err := cl.ListRuns(c.Context)
				if err != nil {
					return err
				}

				for _, r := range runs {
					fmt.Fprintf(s.stdout, "%s  %-9s  %-6s  %d tests  %s\n", r.ID, r.TriggeredBy, verdict(r.Successful), r.TestsRun, r.Start.Format(time.RFC3339))
				}

				return nil
			}

			run, err := cl.GetRun(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			fmt.Fprintf(s.stdout, "%s %s: ran %d tests in %.3fs\n", run.ID, verdict(run.Successful), run.TestsRun, float64(run.DurationInMS)/1000)
			for _, t := range run.Tests {
				fmt.Fprintf(s.stdout, "%s ... %s\n", t.TestID, t.Outcome)
			}

			return nil
		},
	}
}

func verdict(successful bool) string {
	if successful {
		return "OK"
	}
	return "FAILED"
}
