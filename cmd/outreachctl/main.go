// cmd/outreachctl/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

type options struct {
	driver string
	dsn    string
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "outreachctl",
		Short:         "Operate the outreach database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.driver, "driver", envOr("DB_DRIVER", "postgres"), "database driver (postgres or sqlite)")
	root.PersistentFlags().StringVar(&opts.dsn, "database-url", os.Getenv("DATABASE_URL"), "database connection string")

	root.AddCommand(migrateCmd(opts))
	root.AddCommand(seedCmd(opts))
	root.AddCommand(queueCmd(opts))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func withDB(ctx context.Context, opts *options, fn func(ctx context.Context, conn *sql.DB, d db.Dialect) error) error {
	if opts.dsn == "" {
		return fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	conn, dialect, err := db.Open(ctx, opts.driver, opts.dsn)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, conn, dialect)
}

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), opts, func(ctx context.Context, conn *sql.DB, d db.Dialect) error {
				version, err := db.Migrate(ctx, conn, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			})
		},
	}
}

// seedFile describes one sender with one batch of leads and a draft campaign.
type seedFile struct {
	Profile struct {
		OwnerID     string `yaml:"owner_id"`
		DisplayName string `yaml:"display_name"`
		CompanyName string `yaml:"company_name"`
		Signature   string `yaml:"signature"`
	} `yaml:"profile"`
	Batch struct {
		Name        string        `yaml:"name"`
		Description string        `yaml:"description"`
		Objective   string        `yaml:"objective"`
		Persona     model.Persona `yaml:"persona"`
		Tones       []string      `yaml:"tones"`
	} `yaml:"batch"`
	Leads    []service.LeadInput `yaml:"leads"`
	Campaign struct {
		Name     string   `yaml:"name"`
		Cities   []string `yaml:"cities"`
		Timezone string   `yaml:"timezone"`
	} `yaml:"campaign"`
}

func loadSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Profile.OwnerID == "" {
		return nil, fmt.Errorf("%s: profile.owner_id is required", path)
	}
	return &f, nil
}

func seedCmd(opts *options) *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create a profile, batch, leads and draft campaign from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadSeed(args[0])
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), opts, func(ctx context.Context, conn *sql.DB, d db.Dialect) error {
				if _, err := db.Migrate(ctx, conn, d); err != nil {
					return err
				}
				return seed(ctx, cmd.OutOrStdout(), repository.NewStores(conn, d), f, generate)
			})
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "generate drafts with the built-in playbook")
	return cmd
}

func seed(ctx context.Context, out io.Writer, stores *repository.Stores, f *seedFile, generate bool) error {
	profile := model.Profile(f.Profile)
	if err := stores.Profiles.UpsertProfile(ctx, &profile); err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	batches := &service.BatchService{BatchRepo: stores.Batches}
	batch, err := batches.CreateBatch(ctx, service.CreateBatchRequest{
		OwnerID:     profile.OwnerID,
		Name:        f.Batch.Name,
		Description: f.Batch.Description,
		Objective:   f.Batch.Objective,
		Persona:     f.Batch.Persona,
		Tones:       f.Batch.Tones,
	})
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	added, err := batches.AddLeads(ctx, batch.ID, f.Leads)
	if err != nil {
		return fmt.Errorf("leads: %w", err)
	}
	for _, r := range added.Rejected {
		fmt.Fprintf(out, "skipped lead %s: %s\n", r.Email, r.Reason)
	}

	gen, err := provider.NewPlaybook("")
	if err != nil {
		return err
	}
	campaigns := &service.CampaignService{
		CampaignRepo: stores.Campaigns,
		BatchRepo:    stores.Batches,
		DraftRepo:    stores.Drafts,
		JobRepo:      stores.Jobs,
		ProfileRepo:  stores.Profiles,
		Provider:     gen,
		Log:          zap.NewNop(),
	}
	campaign, err := campaigns.CreateCampaign(ctx, service.CreateCampaignRequest{
		BatchID:  batch.ID,
		Name:     f.Campaign.Name,
		Cities:   f.Campaign.Cities,
		Timezone: f.Campaign.Timezone,
	})
	if err != nil {
		return fmt.Errorf("campaign: %w", err)
	}
	fmt.Fprintf(out, "batch %d with %d lead(s), campaign %d\n", batch.ID, len(added.Added), campaign.ID)

	if !generate {
		return nil
	}
	res, err := campaigns.GenerateDrafts(ctx, service.GenerateRequest{CampaignID: campaign.ID})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	fmt.Fprintf(out, "generated %d draft(s)\n", len(res.Drafts))
	return nil
}

func queueCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "queue <campaign-id>",
		Short: "Show the send queue of a launched campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}
			return withDB(cmd.Context(), opts, func(ctx context.Context, conn *sql.DB, d db.Dialect) error {
				stores := repository.NewStores(conn, d)
				campaigns := &service.CampaignService{CampaignRepo: stores.Campaigns, JobRepo: stores.Jobs}
				status, err := campaigns.QueueStatus(ctx, id)
				if err != nil {
					return err
				}
				renderQueue(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func renderQueue(out io.Writer, status *model.QueueStatus) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Draft", "Day", "Subject", "Scheduled For", "Pending", "Total"})
	for _, g := range status.Groups {
		tw.AppendRow(table.Row{g.DraftID, g.SendDay, g.Subject, g.ScheduledFor.UTC().Format(time.RFC3339), g.PendingCount, g.TotalCount})
	}
	next := "-"
	if status.NextFireAt != nil {
		next = status.NextFireAt.UTC().Format(time.RFC3339)
	}
	tw.AppendFooter(table.Row{"", "", "next " + next, "", status.TotalPending, ""})
	tw.Render()
}
