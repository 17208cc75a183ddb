package sfcbuild

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/sfcbuild/internal/version"
	"github.com/arthur-debert/sfcbuild/pkg/config"
	"github.com/arthur-debert/sfcbuild/pkg/devserver"
	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/metrics"
	"github.com/arthur-debert/sfcbuild/pkg/pipeline"
	"github.com/arthur-debert/sfcbuild/pkg/publish"
	"github.com/arthur-debert/sfcbuild/pkg/types"
	"github.com/arthur-debert/sfcbuild/pkg/ui"
	"github.com/arthur-debert/sfcbuild/pkg/verify"
	"github.com/arthur-debert/sfcbuild/pkg/watch"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// app holds the global flags and the renderers every command shares
type app struct {
	verbosity  int
	root       string
	configFile string
	format     string

	out    ui.Renderer
	errOut ui.Renderer
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

// Run executes the command line and returns the process exit status.
// Errors are rendered on stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	renderer := a.errOut
	if renderer == nil {
		renderer, _ = ui.NewRenderer(ui.FormatText, stderr)
	}
	_ = renderer.RenderError(err)
	return errors.ExitCode(err)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sfcbuild",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupLoggerTo(cmd.ErrOrStderr(), a.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
			return a.setupRenderers(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New(errors.ErrInvalidInput, "no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&a.root, "root", "", MsgFlagRoot)
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", MsgFlagConfig)
	rootCmd.PersistentFlags().StringVar(&a.format, "format", "auto", MsgFlagFormat)
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return ui.FormatNames(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Wrap(err, errors.ErrInvalidInput, "invalid flags")
	})

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "COMMANDS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})

	rootCmd.AddCommand(newBuildCmd(a))
	rootCmd.AddCommand(newPlanCmd(a))
	rootCmd.AddCommand(newVerifyCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newPublishCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func (a *app) setupRenderers(cmd *cobra.Command) error {
	format, err := ui.ParseFormat(a.format)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidInput, "invalid --format")
	}
	if a.out, err = ui.NewRenderer(format, cmd.OutOrStdout()); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to create renderer")
	}
	if a.errOut, err = ui.NewRenderer(format, cmd.ErrOrStderr()); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to create renderer")
	}
	return nil
}

// load resolves the configuration with the changed flags of cmd layered on
// top. keys maps flag names to configuration keys.
func (a *app) load(cmd *cobra.Command, keys map[string]string) (*types.Pipeline, error) {
	overrides := map[string]interface{}{}
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		overrides[key] = f.Value.String()
	}
	return config.Load(config.LoadOptions{
		Root:       a.root,
		ConfigFile: a.configFile,
		Overrides:  overrides,
	})
}

var buildFlagKeys = map[string]string{
	"out":         "output_dir",
	"public-path": "public_path",
	"executor":    "executor",
	"mode":        "mode",
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().String("out", "", MsgFlagOut)
	cmd.Flags().String("public-path", "", MsgFlagPublicPath)
	cmd.Flags().String("executor", "", MsgFlagExecutor)
	cmd.Flags().String("mode", "", MsgFlagMode)
}

func newBuildCmd(a *app) *cobra.Command {
	var watchFlag bool
	cmd := &cobra.Command{
		Use:     "build",
		Short:   MsgBuildShort,
		Long:    MsgBuildLong,
		Example: MsgBuildExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, buildFlagKeys)
			if err != nil {
				return err
			}
			if watchFlag {
				return a.watch(cmd.Context(), cfg, nil, nil)
			}

			progress := ui.StartProgress(cmd.ErrOrStderr(), "Building")
			result, err := pipeline.Build(cmd.Context(), cfg, pipeline.Options{})
			progress.Stop()
			if err != nil {
				return err
			}
			return a.out.RenderBuild(result)
		},
	}
	addBuildFlags(cmd)
	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, MsgFlagWatch)
	return cmd
}

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plan",
		Short:   MsgPlanShort,
		Long:    MsgPlanLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, buildFlagKeys)
			if err != nil {
				return err
			}
			result, err := pipeline.Build(cmd.Context(), cfg, pipeline.Options{DryRun: true})
			if err != nil {
				return err
			}
			return a.out.RenderPlan(result)
		},
	}
	addBuildFlags(cmd)
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "verify",
		Short:   MsgVerifyShort,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, map[string]string{"out": "output_dir"})
			if err != nil {
				return err
			}
			report, err := verify.Verify(filesystem.NewOS(), cfg)
			if err != nil {
				return err
			}
			if err := a.out.RenderVerify(report); err != nil {
				return err
			}
			return report.Err()
		},
	}
	cmd.Flags().String("out", "", MsgFlagOut)
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   MsgServeShort,
		Long:    MsgServeLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, buildFlagKeys)
			if err != nil {
				return err
			}
			collector := metrics.New()
			server := devserver.New(devserver.Options{
				Dir:     pipeline.OutputDir(cfg),
				Metrics: collector,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				_ = a.out.RenderMessage(fmt.Sprintf(MsgServing, pipeline.OutputDir(cfg), addr))
				return server.ListenAndServe(ctx, addr)
			})
			g.Go(func() error {
				return a.watch(ctx, cfg, collector, server.Notify)
			})
			return g.Wait()
		},
	}
	addBuildFlags(cmd)
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", MsgFlagAddr)
	return cmd
}

// watch builds once, then rebuilds on every change until ctx is done.
// Failed builds are reported and watching goes on, except for configuration
// errors of the first build.
func (a *app) watch(ctx context.Context, cfg *types.Pipeline, collector *metrics.Collector, notify func(watch.Event)) error {
	engine, err := pipeline.NewEngine(cfg)
	if err != nil {
		return err
	}
	build := func(ctx context.Context) (*pipeline.Result, error) {
		return pipeline.Build(ctx, cfg, pipeline.Options{Engine: engine, Metrics: collector})
	}

	result, err := build(ctx)
	if err != nil {
		if errors.CategoryOf(err) == errors.CategoryConfig {
			return err
		}
		_ = a.errOut.RenderError(err)
	} else {
		_ = a.out.RenderBuild(result)
	}

	w, err := watch.New(cfg, build, watch.Options{})
	if err != nil {
		return err
	}
	_ = a.out.RenderMessage(fmt.Sprintf(MsgWatching, len(watch.Dirs(cfg))))

	return w.Run(ctx, func(ev watch.Event) {
		if ev.Err != nil {
			_ = a.errOut.RenderError(ev.Err)
		} else {
			_ = a.out.RenderMessage(fmt.Sprintf(MsgRebuilt, strings.Join(ev.Paths, ", ")))
			_ = a.out.RenderBuild(ev.Result)
		}
		if notify != nil {
			notify(ev)
		}
	})
}

func newPublishCmd(a *app) *cobra.Command {
	var (
		prefix      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:     "publish",
		Short:   MsgPublishShort,
		Long:    MsgPublishLong,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, map[string]string{"out": "output_dir"})
			if err != nil {
				return err
			}
			uploader, err := publish.NewMinio(cfg.Publish)
			if err != nil {
				return err
			}
			summary, err := publish.Publish(cmd.Context(), filesystem.NewOS(), cfg, uploader, publish.Options{
				Prefix:      prefix,
				Concurrency: concurrency,
			})
			if err != nil {
				return err
			}
			return a.out.RenderPublish(summary)
		},
	}
	cmd.Flags().String("out", "", MsgFlagOut)
	cmd.Flags().StringVar(&prefix, "prefix", "", MsgFlagPrefix)
	cmd.Flags().IntVar(&concurrency, "concurrency", publish.DefaultConcurrency, MsgFlagConcurrency)
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		GroupID: "misc",
	}

	var (
		preset string
		format string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: MsgConfigInitShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.root
			if root == "" {
				root = "."
			}
			path, err := config.WriteInit(root, preset, format, force)
			if err != nil {
				return err
			}
			return a.out.RenderMessage(fmt.Sprintf(MsgConfigWritten, path))
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", config.PresetMinimal,
		MsgFlagPreset+" ("+strings.Join(config.PresetNames(), ", ")+")")
	initCmd.Flags().StringVarP(&format, "output", "o", config.FormatTOML, MsgFlagConfigFmt)
	initCmd.Flags().BoolVar(&force, "force", false, MsgFlagForce)

	var showFormat string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: MsgConfigShowShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			body, err := config.Render(cfg, showFormat)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	showCmd.Flags().StringVarP(&showFormat, "output", "o", config.FormatTOML, MsgFlagConfigFmt)

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), MsgVersionFormat, version.Version, version.Commit, version.Date)
			return err
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}
		},
	}
}
