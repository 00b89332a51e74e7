package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"brandmerch/internal/bootstrap"
	"brandmerch/internal/domain"
	"brandmerch/internal/infra/credentials"
	"brandmerch/internal/middleware"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Email resume links to stalled sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				res, err := c.Sweeper.Run(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var (
		queue      bool
		regenerate bool
	)
	cmd := &cobra.Command{
		Use:   "resume <session-id> [stage]",
		Short: "Run the next (or the named) stage of a session",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				sess, err := c.Pipeline.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var stage domain.Stage
				if len(args) == 2 {
					stage = domain.Stage(strings.ToLower(args[1]))
					if !stage.Valid() {
						return fmt.Errorf("unknown stage %q", args[1])
					}
				} else if stage, err = stageForStatus(sess.Status); err != nil {
					return err
				}

				if queue {
					task, err := c.Tasks.Enqueue(cmd.Context(), sess.ID, stage, regenerate)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "queued %s for %s (task %s)\n", stage, sess.ID, task.ID)
					return nil
				}
				if err := c.Pipeline.RunTask(cmd.Context(), domain.Task{SessionID: sess.ID, Stage: stage, Regenerate: regenerate}); err != nil {
					return err
				}
				sess, err = c.Pipeline.Get(cmd.Context(), sess.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d%%)\n", sess.ID, sess.Status.Label(), sess.Status.Progress())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&queue, "queue", false, "Enqueue the stage for the worker instead of running it here")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Regenerate output that already exists")
	return cmd
}

// stageForStatus picks the stage that moves a session forward.
func stageForStatus(status domain.Status) (domain.Stage, error) {
	switch status {
	case domain.StatusScraping:
		return domain.StageScrape, nil
	case domain.StatusConcept:
		return domain.StageConcept, nil
	case domain.StatusMotif:
		return domain.StageMotif, nil
	case domain.StatusProducts:
		return domain.StageProducts, nil
	case domain.StatusAwaitingApproval:
		return "", errors.New("session is waiting for brand approval")
	default:
		return "", fmt.Errorf("session is %s, nothing to resume", status)
	}
}

func newLinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "link <session-id>",
		Short: "Print a magic link for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				sess, err := c.Pipeline.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				link, err := c.Links.URL(sess.ID, sess.Email)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
				return nil
			})
		},
	}
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			token, err := middleware.SignJWT(cfg.JWTSecret, subject, middleware.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

func newKeyCommand(ctx *commandContext) *cobra.Command {
	var (
		provider string
		remove   bool
	)
	cmd := &cobra.Command{
		Use:     "gemini-key [key]",
		Aliases: []string{"key"},
		Short:   "Store or clear a provider API key in the database",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider = strings.ToLower(strings.TrimSpace(provider))
			if remove {
				if len(args) > 0 {
					return fmt.Errorf("--clear takes no key argument")
				}
				return ctx.withContainer(cmd.Context(), func(c *bootstrap.Container) error {
					if err := c.Credentials.Clear(cmd.Context(), provider); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s key cleared, environment value applies\n", provider)
					return nil
				})
			}
			key := ""
			if len(args) == 1 {
				key = strings.TrimSpace(args[0])
			}
			if key == "" {
				key = strings.TrimSpace(os.Getenv(strings.ToUpper(provider) + "_API_KEY"))
			}
			if key == "" {
				return fmt.Errorf("%s API key is required as an argument or via %s_API_KEY", provider, strings.ToUpper(provider))
			}
			return ctx.withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				if err := c.Credentials.Set(cmd.Context(), provider, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s key stored\n", provider)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remove, "clear", false, "Remove the stored key")
	cmd.Flags().StringVar(&provider, "provider", credentials.ProviderGemini, "Provider: "+strings.Join(credentials.Providers, ", "))
	return cmd
}
