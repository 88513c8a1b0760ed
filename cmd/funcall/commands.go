package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dileep-u-k/function-gateway/internal/cache"
	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/console"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/manifest"
	"github.com/dileep-u-k/function-gateway/internal/sandbox"
	"github.com/dileep-u-k/function-gateway/internal/tools"
	"github.com/dileep-u-k/function-gateway/internal/version"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

// CLI holds the state shared by the subcommands.
type CLI struct {
	manifestPath string
	verbose      bool
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	cli := &CLI{}

	root := &cobra.Command{
		Use:          "funcall",
		Short:        "Dispatch LLM function calls against a manifest",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cli.manifestPath, "manifest", "m", "", "path to the manifest YAML file")
	root.PersistentFlags().BoolVarP(&cli.verbose, "verbose", "v", false, "log declared action requests")

	root.AddCommand(cli.dispatchCommand())
	root.AddCommand(cli.functionsCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetBuildInfo())
			return nil
		},
	})
	return root
}

func (cli *CLI) dispatchCommand() *cobra.Command {
	var (
		arguments   string
		lastMessage string
		container   string
	)
	cmd := &cobra.Command{
		Use:   "dispatch [function-name]",
		Short: "Process one function call and print the function message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rt *sandbox.Runtime
			if container != "" {
				exec, err := sandbox.NewDockerExecutor(cmd.Context(), container)
				if err != nil {
					return err
				}
				defer exec.Close()
				rt = sandbox.NewRuntime(exec, cli.logger(cmd.ErrOrStderr()))
			}
			return cli.dispatch(cmd, args[0], arguments, lastMessage, rt)
		},
	}
	cmd.Flags().StringVarP(&arguments, "args", "a", "{}", "function arguments, normally a JSON object")
	cmd.Flags().StringVarP(&lastMessage, "last-message", "l", "", "user message the call answers")
	cmd.Flags().StringVar(&container, "sandbox", "", "running container used for notebook calls")
	return cmd
}

func (cli *CLI) dispatch(cmd *cobra.Command, name, arguments, lastMessage string, rt *sandbox.Runtime) error {
	m, err := cli.loadManifest(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	conv := chat.NewContext(chat.NewConversationID())
	if lastMessage != "" {
		conv.AppendUserQuestion(lastMessage)
	}
	var lookup function.Lookup
	if rt != nil {
		lookup = rt.Notebook(conv.ID())
	}

	call := function.NewCall(&function.Request{Name: name, Arguments: arguments}, m,
		function.WithReporter(console.New(cmd.ErrOrStderr())),
		function.WithLogger(cli.logger(cmd.ErrOrStderr())),
		function.WithVerbose(cli.verbose),
	)

	out := cmd.OutOrStdout()
	if data, method := call.EmitData(); method != "" {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encoding emit data: %w", err)
		}
		fmt.Fprintf(out, "%s %s %s\n", bold("emit"), method, gray(string(payload)))
	}

	outcome, err := call.Process(cmd.Context(), conv, lookup)
	if err != nil {
		return err
	}
	if outcome.Message == "" {
		fmt.Fprintln(out, gray("(no function message)"))
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", green(outcome.FunctionName+":"), outcome.Message)
	if !outcome.CallLLM {
		fmt.Fprintln(out, gray("(result is not sent back to the LLM)"))
	}
	return nil
}

func (cli *CLI) functionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the functions the manifest offers to the LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := cli.loadManifest(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			defs := m.FunctionDefinitions()
			fmt.Fprintf(out, "%s (%d):\n", bold(m.Title()), len(defs))
			for _, fn := range defs {
				fmt.Fprintf(out, "  %s %s\n", green(fn.Name), gray(fn.Description))
			}
			if names := m.ActionNames(); len(names) > 0 {
				fmt.Fprintf(out, "actions: %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func (cli *CLI) loadManifest(logOut io.Writer) (*manifest.Manifest, error) {
	if cli.manifestPath == "" {
		return nil, fmt.Errorf("--manifest is required")
	}
	return manifest.Load(cli.manifestPath,
		manifest.WithRegistry(tools.NewDefaultToolManager()),
		manifest.WithActionCache(cache.NewLRU(64, 0)),
		manifest.WithLogger(cli.logger(logOut)),
	)
}

func (cli *CLI) logger(out io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if cli.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
