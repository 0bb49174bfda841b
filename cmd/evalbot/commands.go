package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"evalbot/internal"
	"evalbot/internal/ai/tools"
	"evalbot/internal/evaluation"
	"evalbot/internal/initialization"
	"evalbot/internal/logger"
	"evalbot/internal/security"
	"evalbot/internal/web"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "evalbot",
		Short:         "Answer GAIA benchmark questions with a tool-using LLM agent",
		Version:       internal.BOT_VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "path to config.toml (default $CONFIG_PATH or "+internal.DEFAULT_CONFIG_PATH+")")

	cmd.AddCommand(
		newAskCommand(o),
		newRunCommand(o),
		newSubmitCommand(o),
		newServeCommand(o),
		newIndexCommand(o),
		newHashPasswordCommand(),
	)
	return cmd
}

// withApp loads the configuration, builds the app and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(app *initialization.App) error) error {
	cfg, err := initialization.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	app, err := initialization.Initialize(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func newAskCommand(o *rootOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return o.withApp(cmd, func(app *initialization.App) error {
				transcript, err := app.Agent.Run(cmd.Context(), question)
				if err != nil {
					return err
				}
				if verbose {
					for _, m := range transcript.Messages {
						fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", m.Role, m.Content)
						for _, tc := range m.ToolCalls {
							fmt.Fprintf(cmd.ErrOrStderr(), "  -> %s(%s)\n", tc.Name, tc.Arguments)
						}
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "%d inference calls, %d tool results\n",
						transcript.InferenceCalls, transcript.ToolResults)
				}
				fmt.Fprintln(cmd.OutOrStdout(), transcript.Answer)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the whole conversation to stderr")
	return cmd
}

func newRunCommand(o *rootOptions) *cobra.Command {
	var submit bool
	var username string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the questions and answer them all",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *initialization.App) error {
				if submit {
					report, err := app.RunAndSubmit(cmd.Context(), username)
					if report != nil {
						printReport(cmd, report)
					}
					return err
				}

				report, err := app.Runner(username).Run(cmd.Context())
				if err != nil {
					return errors.New(evaluation.FetchStatus(err))
				}
				report.Status = fmt.Sprintf("Answered %d of %d questions. Not submitted.", len(report.Answers), len(report.Rows))
				printReport(cmd, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the answers when done")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Hugging Face username to submit as (default evaluation.username)")
	return cmd
}

func newSubmitCommand(o *rootOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the cached answers of previous runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *initialization.App) error {
				report, err := app.Runner(username).SubmitCached(cmd.Context())
				if report != nil {
					printReport(cmd, report)
					app.Announcer.Notify(cmd.Context(), report.Status)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Hugging Face username to submit as (default evaluation.username)")
	return cmd
}

func newServeCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluation web form",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *initialization.App) error {
				cfg := app.Config.Web
				srv, err := web.NewServer(cmd.Context(), app.RunAndSubmit, app.Agent, web.Options{
					Listen:        cfg.Listen,
					AdminUser:     cfg.AdminUser,
					AdminPassHash: cfg.AdminPasshash,
					AskLimit:      cfg.AskPerMinute,
					AskWindow:     time.Minute,
					Info:          app.Agent.Status(),
				})
				if err != nil {
					return err
				}
				return srv.ListenAndServe(cmd.Context())
			})
		},
	}
}

func newIndexCommand(o *rootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "index FILE.jsonl",
		Short: "Embed a metadata.jsonl file into the exemplar store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initialization.LoadConfig(o.configPath)
			if err != nil {
				return err
			}
			r, err := initialization.OpenRetriever(cfg)
			if err != nil {
				return err
			}
			defer r.Store().Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if replace {
				if err := r.Store().Clear(cmd.Context()); err != nil {
					return fmt.Errorf("clear exemplar store: %w", err)
				}
			}

			n, err := r.Import(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			total, err := r.Store().Count(cmd.Context())
			if err != nil {
				return err
			}
			logger.Successf("Indexed %d exemplars from %s (%d in store)", n, args[0], total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "remove existing exemplars first")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print an argon2id hash for web.admin_passhash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := security.GenerateHash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, report *evaluation.Report) {
	out := cmd.OutOrStdout()
	for _, row := range report.Rows {
		fmt.Fprintf(out, "%s\t%s\t%s\n", row.TaskID, tools.TruncateString(strings.ReplaceAll(row.Question, "\n", " "), 60), row.SubmittedAnswer)
	}
	if report.Status != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.Status)
	}
}
