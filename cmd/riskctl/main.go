package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/config"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/db"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/engine"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/migrate"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/overlap"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/repo"
	"github.com/adeel99sa/ZephixPlatform-sub021/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "riskctl",
	Short: "Zephix risk engine CLI",
	Long: `riskctl detects resource overallocation and project delivery risk.
- Workspace: your working directory holding .zephix/risk.db and zephix-risk.yml.
- Projects carry work items, allocations, and budget figures.
- The daily sweep runs five risk rules per active project and records signals.
- The hourly sweep reconciles day-level capacity conflicts per resource.
- Signals flow unacknowledged -> acknowledged -> resolved; conflicts open -> resolved.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ZEPHIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(allocationCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(signalCmd())
	rootCmd.AddCommand(conflictCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default zephix-risk.yml and initialize the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists", cfgPath)
			}
			if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Printf("Initialized workspace: %s and %s\n", cfgPath, db.Path(workspace))
			return nil
		},
	}
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			return migrate.Migrate(conn)
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, org, name, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p := domain.Project{
					ID:        id,
					OrgID:     org,
					Name:      name,
					Status:    "active",
					StartDate: start,
					EndDate:   end,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if p.ID == "" {
					p.ID = uuid.New().String()
				}
				if err := e.Repo.InsertProject(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (optional)")
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&start, "start", "", "start date (2006-01-02)")
	cmd.Flags().StringVar(&end, "end", "", "end date (2006-01-02)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Org", "Name", "Status", "End"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.OrgID, p.Name, p.Status, p.EndDate})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update project status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpdateProjectStatus(ctx, args[0], status); err != nil {
					return err
				}
				p, err := r.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status (active, completed, archived)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{Use: "item", Aliases: []string{"workitem"}, Short: "Manage work items"}
	item.AddCommand(itemCreateCmd())
	item.AddCommand(itemListCmd())
	item.AddCommand(itemUpdateCmd())
	return item
}

func itemCreateCmd() *cobra.Command {
	var project, title, itemType, status, plannedEnd string
	var effort int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetProject(ctx, project); err != nil {
					return err
				}
				now := time.Now().UTC().Format(time.RFC3339)
				w := domain.WorkItem{
					ID:        uuid.New().String(),
					ProjectID: project,
					Title:     title,
					Type:      itemType,
					Status:    status,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if cmd.Flags().Changed("effort") {
					w.EffortPoints = &effort
				}
				if plannedEnd != "" {
					w.PlannedEnd = &plannedEnd
				}
				if err := r.InsertWorkItem(ctx, w); err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&itemType, "type", "feature", "item type")
	cmd.Flags().StringVar(&status, "status", "planned", "status")
	cmd.Flags().IntVar(&effort, "effort", 0, "effort points")
	cmd.Flags().StringVar(&plannedEnd, "planned-end", "", "planned end date")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func itemListCmd() *cobra.Command {
	var f repo.WorkItemFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListWorkItems(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Title", "Status", "Effort"})
				for _, w := range items {
					effort := ""
					if w.EffortPoints != nil {
						effort = fmt.Sprintf("%d", *w.EffortPoints)
					}
					tw.AppendRow(table.Row{w.ID, w.ProjectID, w.Title, w.Status, effort})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func itemUpdateCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update work item status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				at := time.Now().UTC().Format(time.RFC3339)
				return r.UpdateWorkItemStatus(ctx, args[0], status, at)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func allocationCmd() *cobra.Command {
	alloc := &cobra.Command{Use: "allocation", Short: "Manage allocations"}
	alloc.AddCommand(allocationCreateCmd())
	alloc.AddCommand(allocationListCmd())
	alloc.AddCommand(allocationCheckCmd())
	return alloc
}

func allocationFromFlags(resource, project, task, start, end string, percent, hours float64) domain.Allocation {
	a := domain.Allocation{
		ResourceID:  resource,
		ProjectID:   project,
		StartDate:   start,
		EndDate:     end,
		Percent:     percent,
		HoursPerDay: hours,
	}
	if task != "" {
		a.TaskID = &task
	}
	return a
}

func allocationCreateCmd() *cobra.Command {
	var resource, project, task, start, end string
	var percent, hours float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an allocation (validates capacity first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a := allocationFromFlags(resource, project, task, start, end, percent, hours)
				saved, overloaded, err := e.CreateAllocation(ctx, a, viper.GetBool("force"))
				if errors.Is(err, engine.ErrOverallocated) {
					fmt.Println("allocation rejected; the following days would exceed capacity (use --force to override):")
					printOverloadedDays(overloaded)
					return err
				}
				if err != nil {
					return err
				}
				if len(overloaded) > 0 {
					fmt.Println("allocation forced over capacity on:")
					printOverloadedDays(overloaded)
				}
				return printJSONOrTable(saved)
			})
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "resource id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&task, "task", "", "task id (optional)")
	cmd.Flags().StringVar(&start, "start", "", "start date (2006-01-02)")
	cmd.Flags().StringVar(&end, "end", "", "end date (2006-01-02)")
	cmd.Flags().Float64Var(&percent, "percent", 0, "allocation percentage (0,100]")
	cmd.Flags().Float64Var(&hours, "hours-per-day", 0, "hours per day (optional)")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("percent")
	return cmd
}

func allocationCheckCmd() *cobra.Command {
	var resource, project, start, end string
	var percent float64
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run capacity check for a proposed allocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a := allocationFromFlags(resource, project, "", start, end, percent, 0)
				overloaded, err := e.CheckAllocation(ctx, a)
				if err != nil {
					return err
				}
				if len(overloaded) == 0 {
					fmt.Println("ok: no day exceeds capacity")
					return nil
				}
				printOverloadedDays(overloaded)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "resource id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&start, "start", "", "start date")
	cmd.Flags().StringVar(&end, "end", "", "end date")
	cmd.Flags().Float64Var(&percent, "percent", 0, "allocation percentage")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("percent")
	return cmd
}

func allocationListCmd() *cobra.Command {
	var resource, project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List allocations by resource or project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var items []domain.Allocation
				var err error
				switch {
				case resource != "":
					items, err = r.ListAllocationsByResource(ctx, resource)
				case project != "":
					items, err = r.ListAllocationsByProject(ctx, project)
				default:
					return fmt.Errorf("--resource or --project is required")
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Resource", "Project", "Start", "End", "Percent"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.ResourceID, a.ProjectID, a.StartDate, a.EndDate, a.Percent})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "resource id")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	return cmd
}

func budgetCmd() *cobra.Command {
	var planned, actual float64
	cmd := &cobra.Command{
		Use:   "budget <project-id>",
		Short: "Set planned budget and actual cost for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetProject(ctx, args[0]); err != nil {
					return err
				}
				at := time.Now().UTC().Format(time.RFC3339)
				return r.UpsertProjectBudget(ctx, args[0], planned, actual, at)
			})
		},
	}
	cmd.Flags().Float64Var(&planned, "planned", 0, "planned budget")
	cmd.Flags().Float64Var(&actual, "actual", 0, "actual cost")
	_ = cmd.MarkFlagRequired("planned")
	_ = cmd.MarkFlagRequired("actual")
	return cmd
}

func scanCmd() *cobra.Command {
	var persist bool
	cmd := &cobra.Command{
		Use:   "scan <project-id>",
		Short: "Run the risk rules against one project now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				findings, err := e.ScanProject(ctx, args[0])
				if err != nil {
					return err
				}
				if !persist {
					return printJSONOrTable(findings)
				}
				signals, err := e.RecordFindings(ctx, findings)
				if err != nil {
					return err
				}
				return printJSONOrTable(signals)
			})
		},
	}
	cmd.Flags().BoolVar(&persist, "persist", true, "record findings as signals")
	return cmd
}

func sweepCmd() *cobra.Command {
	sweep := &cobra.Command{Use: "sweep", Short: "Run the background sweeps on demand"}
	sweep.AddCommand(&cobra.Command{
		Use:   "daily",
		Short: "Scan all active projects and record risk signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.DailySweep(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(sum)
			})
		},
	})
	sweep.AddCommand(&cobra.Command{
		Use:     "hourly",
		Aliases: []string{"reconcile"},
		Short:   "Reconcile day-level capacity conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.HourlySweep(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(sum)
			})
		},
	})
	return sweep
}

func signalCmd() *cobra.Command {
	sig := &cobra.Command{Use: "signal", Short: "Manage risk signals"}
	sig.AddCommand(signalListCmd())
	sig.AddCommand(signalAckCmd())
	sig.AddCommand(signalResolveCmd())
	return sig
}

func signalListCmd() *cobra.Command {
	var f repo.SignalFilters
	var active bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List risk signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var items []domain.RiskSignal
				var err error
				if active {
					items, err = r.ListActiveSignals(ctx, f.OrgID)
				} else {
					items, err = r.ListSignals(ctx, f)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Type", "Severity", "Status", "Created"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.ProjectID, s.Type, s.Severity, s.Status, s.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.OrgID, "org", "", "organization id")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.SignalType, "type", "", "signal type filter")
	cmd.Flags().BoolVar(&active, "active", false, "every unresolved signal, ignoring other filters")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func signalAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <signal-id>",
		Short: "Acknowledge a risk signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.AcknowledgeSignal(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func signalResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <signal-id>",
		Short: "Resolve a risk signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.ResolveSignal(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func conflictCmd() *cobra.Command {
	con := &cobra.Command{Use: "conflict", Short: "Manage capacity conflicts"}
	con.AddCommand(conflictListCmd())
	con.AddCommand(conflictResolveCmd())
	return con
}

func conflictListCmd() *cobra.Command {
	var resource string
	var includeResolved bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List capacity conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				f := repo.ConflictFilters{ResourceID: resource}
				if !includeResolved {
					open := false
					f.Resolved = &open
				}
				items, err := r.ListConflicts(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Resource", "Date", "Total %", "Severity", "Resolved"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.ResourceID, c.ConflictDate, c.TotalPercent, c.Severity, c.Resolved})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "resource id filter")
	cmd.Flags().BoolVar(&includeResolved, "all", false, "include resolved conflicts")
	return cmd
}

func conflictResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Resolve a capacity conflict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.ResolveConflict(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <project-id>",
		Short: "Show the aggregated risk profile for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetRiskProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server with background sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:      os.Getenv("ZEPHIX_JWT_SECRET"),
				EnableDevLogin: devLogin,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("ZEPHIX_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			stopSweeper := server.StartSweeper(e)
			defer stopSweeper()
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Zephix Risk API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable the dev token endpoint")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printOverloadedDays(days []overlap.DayLoad) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Date", "Total %"})
	for _, d := range days {
		tw.AppendRow(table.Row{d.Date.Format(domain.DateLayout), d.Total})
	}
	tw.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
