// Copyright 2025 ChatDocs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/chatdocs/ragengine"
	"github.com/chatdocs/ragengine/config"
	"github.com/chatdocs/ragengine/core"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "ragengine",
		Usage: "Multi-tenant document indexing and retrieval engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "tenant",
				Usage: "Manage tenants",
				Subcommands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "Register a new tenant and print its client ID",
						Action: tenantCreateCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "company",
								Usage:    "Company name",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "email",
								Usage:    "Contact email",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "plan",
								Usage: "Plan tier (free, basic, pro, enterprise)",
								Value: "free",
							},
						},
					},
					{
						Name:   "list",
						Usage:  "List all tenants",
						Action: tenantListCommand,
					},
					{
						Name:      "plan",
						Usage:     "Change a tenant's plan",
						Action:    tenantPlanCommand,
						ArgsUsage: "CLIENT_ID PLAN",
					},
					{
						Name:      "suspend",
						Usage:     "Suspend a tenant",
						Action:    tenantStatusCommand(core.StatusSuspended),
						ArgsUsage: "CLIENT_ID",
					},
					{
						Name:      "activate",
						Usage:     "Reactivate a suspended tenant",
						Action:    tenantStatusCommand(core.StatusActive),
						ArgsUsage: "CLIENT_ID",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a document for a tenant",
				Action:    ingestCommand,
				ArgsUsage: "CLIENT_ID DOC_ID FILE",
			},
			{
				Name:      "delete",
				Usage:     "Delete a tenant's document",
				Action:    deleteCommand,
				ArgsUsage: "CLIENT_ID DOC_ID",
			},
			{
				Name:      "query",
				Usage:     "Ask a question against a tenant's corpus",
				Action:    queryCommand,
				ArgsUsage: "CLIENT_ID QUESTION",
			},
			{
				Name:      "stats",
				Usage:     "Show a tenant's usage and documents",
				Action:    statsCommand,
				ArgsUsage: "CLIENT_ID",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openService builds the engine from the config file plus CLI overrides.
func openService(c *cli.Context) (*ragengine.Service, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	svc, err := ragengine.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return svc, nil
}

func tenantCreateCommand(c *cli.Context) error {
	plan, err := core.ParsePlanType(c.String("plan"))
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	tenant, err := svc.CreateTenant(context.Background(), c.String("company"), c.String("email"), plan)
	if err != nil {
		return err
	}

	fmt.Printf("Client ID: %s\n", tenant.ClientID)
	fmt.Printf("Plan:      %s (%s documents, %s requests/month)\n",
		tenant.Plan, formatLimit(tenant.MaxDocuments), formatLimit(tenant.MaxMonthlyRequests))
	return nil
}

func tenantListCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	tenants, err := svc.ListTenants(context.Background())
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants registered.")
		return nil
	}

	for _, t := range tenants {
		fmt.Printf("%s  %-10s  %-9s  %s\n", t.ClientID, t.Plan, t.Status, t.CompanyName)
	}
	return nil
}

func tenantPlanCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: tenant plan CLIENT_ID PLAN")
	}
	plan, err := core.ParsePlanType(c.Args().Get(1))
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	tenant, err := svc.UpdateTenantPlan(context.Background(), c.Args().Get(0), plan)
	if err != nil {
		return err
	}
	fmt.Printf("%s moved to %s (%s documents, %s requests/month)\n",
		tenant.ClientID, tenant.Plan, formatLimit(tenant.MaxDocuments), formatLimit(tenant.MaxMonthlyRequests))
	return nil
}

func tenantStatusCommand(status core.TenantStatus) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("usage: tenant %s CLIENT_ID", status)
		}

		svc, err := openService(c)
		if err != nil {
			return err
		}
		defer svc.Close()

		clientID := c.Args().Get(0)
		if err := svc.SetTenantStatus(context.Background(), clientID, status); err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", clientID, status)
		return nil
	}
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 3 {
		return fmt.Errorf("usage: ingest CLIENT_ID DOC_ID FILE")
	}

	data, err := os.ReadFile(c.Args().Get(2))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Ingest(context.Background(), c.Args().Get(0), c.Args().Get(1), string(data))
	if err != nil {
		return err
	}

	verb := "Stored"
	if result.Replaced {
		verb = "Replaced"
	}
	fmt.Printf("%s %s as %d chunks\n", verb, result.DocID, result.ChunkCount)
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: delete CLIENT_ID DOC_ID")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	existed, err := svc.Delete(context.Background(), c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	if existed {
		fmt.Printf("Deleted %s\n", c.Args().Get(1))
	} else {
		fmt.Printf("No document %s\n", c.Args().Get(1))
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: query CLIENT_ID QUESTION")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Query(context.Background(), c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if len(result.Chunks) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, chunk := range result.Chunks {
			fmt.Printf("  %-20s score=%.3f\n", chunk.DocID, chunk.Score)
		}
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: stats CLIENT_ID")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.Stats(context.Background(), c.Args().Get(0))
	if err != nil {
		return err
	}

	t := stats.Tenant
	u := stats.Usage
	fmt.Printf("Tenant:    %s (%s)\n", t.ClientID, t.CompanyName)
	fmt.Printf("Plan:      %s, %s\n", t.Plan, t.Status)
	fmt.Printf("Documents: %d live / %s allowed (%d lifetime)\n",
		u.DocumentCount, formatLimit(t.MaxDocuments), u.TotalDocuments)
	fmt.Printf("Requests:  %d this month / %s allowed (%d lifetime)\n",
		u.MonthRequests, formatLimit(t.MaxMonthlyRequests), u.TotalRequests)
	if !u.MonthlyReset.IsZero() {
		fmt.Printf("Resets:    %s\n", u.MonthlyReset.Format("2006-01-02"))
	}
	if len(stats.Documents) > 0 {
		fmt.Println()
		for _, doc := range stats.Documents {
			fmt.Printf("  %-30s %4d chunks  updated %s\n",
				doc.DocID, doc.ChunkCount, doc.UpdatedAt.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func formatLimit(limit int64) string {
	if limit < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
