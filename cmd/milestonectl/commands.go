package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"milestonez/internal/app"
	"milestonez/internal/config"
	"milestonez/internal/model"
	"milestonez/internal/service"
	"milestonez/pkg/logger"
	"milestonez/pkg/util"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "milestonectl",
		Short:         "Generate and edit project milestone plans",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				_ = os.Setenv("MILESTONEZ_CONFIG", configPath)
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $MILESTONEZ_CONFIG)")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newPatchCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})
	return root
}

// withApp loads configuration and runs fn against a fully wired service.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to init service", zap.Error(err))
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- generate ---

func newGenerateCmd() *cobra.Command {
	var req service.GenerateRequest

	cmd := &cobra.Command{
		Use:   "generate <project description>",
		Short: "Generate a plan, or modify the stored one with --modify",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ProjectDescription = args[0]
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Service.GenerateMilestones(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.UserID, "user", "u", "", "user id (required)")
	f.StringVarP(&req.ProjectID, "project", "p", "", "project id (default: the description)")
	f.StringVarP(&req.ModifyingPrompt, "modify", "m", "", "instruction for changing the stored plan")
	f.IntVarP(&req.TotalWeeks, "weeks", "w", service.DefaultWeeks, "total number of weeks")
	f.BoolVar(&req.Evaluate, "evaluate", false, "score the plan against the summarized description")
	f.StringVar(&req.Model, "model", "", "model alias")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// --- patch ---

func newPatchCmd() *cobra.Command {
	var (
		userID, projectID string
		m                 model.Milestone
	)

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Replace one milestone of a stored plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if m.Roles == nil {
				m.Roles = []string{}
			}
			if m.Deliverables == nil {
				m.Deliverables = []string{}
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Service.UpdateMilestone(ctx, service.UpdateRequest{
					UserID:    userID,
					ProjectID: projectID,
					Milestone: m,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.History)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&userID, "user", "u", "", "user id (required)")
	f.StringVarP(&projectID, "project", "p", "", "project id (required)")
	f.IntVar(&m.Index, "index", 0, "milestone index to replace (required)")
	f.StringVar(&m.Title, "title", "", "new title (required)")
	f.StringVar(&m.Description, "description", "", "new description")
	f.IntVar(&m.Time, "time", 1, "weeks")
	f.StringSliceVar(&m.Roles, "role", nil, "role, repeatable")
	f.StringSliceVar(&m.Deliverables, "deliverable", nil, "deliverable, repeatable")
	for _, name := range []string{"user", "project", "index", "title"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// --- get / list ---

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user id> <project id>",
		Short: "Print the stored plan text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Service.GetHistory(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.History)
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				recs, err := a.Service.ListHistories(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	}
}

// --- token ---

func newTokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user id>",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			tok, err := util.GenerateJWT(args[0], secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
