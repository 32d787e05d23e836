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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"farmsavvy/internal/app"
	"farmsavvy/internal/authz"
	"farmsavvy/internal/config"
	"farmsavvy/internal/db"
	"farmsavvy/internal/engine"
	"farmsavvy/internal/ledger"
	"farmsavvy/internal/migrate"
	"farmsavvy/internal/repo"
	"farmsavvy/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fsv",
	Short: "FarmSavvy CLI",
	Long: `FarmSavvy manages livestock farms: animals, tasks, members, and an
append-only activity ledger. The HTTP API (fsv serve) is the primary
surface; the CLI commands below operate on the same local database.`,
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
	viper.SetEnvPrefix("FARMSAVVY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "act as the user with this email")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(farmCmd())
	rootCmd.AddCommand(animalCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(tokenCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if s := os.Getenv("FARMSAVVY_AUTH_JWT_SECRET"); s != "" {
				cfg.Auth.JWTSecret = s
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("jwt secret is required; set config auth.jwt_secret or FARMSAVVY_AUTH_JWT_SECRET")
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			log := zerolog.New(os.Stderr).With().Timestamp().Logger()
			rec := ledger.New(conn, log)
			e := engine.New(conn, cfg, rec)
			if _, err := app.EnsureAdmin(cmd.Context(), e, cfg); err != nil {
				log.Warn().Err(err).Msg("admin bootstrap skipped")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:     cfg.Auth.JWTSecret,
					TokenTTLHours: cfg.Auth.TokenTTLHours,
					Logger:        log,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving FarmSavvy API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default farmsavvy.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			c.Auth.JWTSecret = "" // never print secrets
			return printJSON(c)
		},
	})
	return cfg
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var name, email, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Register(ctx, engine.RegisterOptions{Name: name, Email: email, Password: password, Role: role})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", "worker", "role (admin, manager, worker)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Active"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, u.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func farmCmd() *cobra.Command {
	farm := &cobra.Command{Use: "farm", Short: "Manage farms"}
	farm.AddCommand(farmCreateCmd())
	farm.AddCommand(farmListCmd())
	farm.AddCommand(farmShowCmd())
	farm.AddCommand(farmAddMemberCmd())
	return farm
}

func farmCreateCmd() *cobra.Command {
	var name, address string
	var size float64
	var types []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a farm owned by the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				f, err := e.CreateFarm(ctx, actor, engine.FarmCreateOptions{
					Name: name, Address: address, SizeAcres: size, Types: types,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "farm name")
	cmd.Flags().StringVar(&address, "address", "", "farm address")
	cmd.Flags().Float64Var(&size, "size-acres", 0, "size in acres")
	cmd.Flags().StringSliceVar(&types, "type", nil, "farm types")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func farmListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List farms visible to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				farms, err := e.ListFarms(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(farms)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Owner", "Managers", "Workers", "Active"})
				for _, f := range farms {
					tw.AppendRow(table.Row{f.ID, f.Name, f.OwnerID, len(f.Managers), len(f.Workers), f.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func farmShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <farm-id>",
		Short: "Show a farm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				f, err := e.GetFarm(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	return cmd
}

func farmAddMemberCmd() *cobra.Command {
	var farmID, email, role string
	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Add a manager or worker to a farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				u, err := e.Repo.GetUserByEmail(ctx, email)
				if err != nil {
					return err
				}
				f, err := e.AddFarmMember(ctx, actor, farmID, u.ID, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	cmd.Flags().StringVar(&farmID, "farm", "", "farm id")
	cmd.Flags().StringVar(&email, "email", "", "member email")
	cmd.Flags().StringVar(&role, "role", "worker", "member role (manager, worker)")
	_ = cmd.MarkFlagRequired("farm")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func animalCmd() *cobra.Command {
	animal := &cobra.Command{Use: "animal", Short: "Manage animals"}
	animal.AddCommand(animalAddCmd())
	animal.AddCommand(animalListCmd())
	animal.AddCommand(animalStatsCmd())
	return animal
}

func animalAddCmd() *cobra.Command {
	var opts engine.AnimalCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an animal to a farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				a, err := e.CreateAnimal(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.FarmID, "farm", "", "farm id")
	cmd.Flags().StringVar(&opts.TagNumber, "tag", "", "tag number")
	cmd.Flags().StringVar(&opts.Name, "name", "", "animal name")
	cmd.Flags().StringVar(&opts.Type, "type", "", "animal type")
	cmd.Flags().StringVar(&opts.Breed, "breed", "", "breed")
	cmd.Flags().StringVar(&opts.Gender, "gender", "", "gender (male, female)")
	cmd.Flags().StringVar(&opts.DateOfBirth, "born", "", "date of birth (RFC3339)")
	cmd.Flags().Float64Var(&opts.WeightKg, "weight", 0, "weight in kg")
	_ = cmd.MarkFlagRequired("farm")
	_ = cmd.MarkFlagRequired("tag")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func animalListCmd() *cobra.Command {
	var f repo.AnimalFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List animals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				animals, err := e.ListAnimals(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(animals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Tag", "Type", "Breed", "Status", "Weight (kg)"})
				for _, a := range animals {
					tw.AppendRow(table.Row{a.ID, a.TagNumber, a.Type, a.Breed, a.Status, a.WeightKg})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.FarmID, "farm", "", "farm id")
	cmd.Flags().StringVar(&f.Type, "type", "", "type filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func animalStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <farm-id>",
		Short: "Herd stats for a farm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				stats, err := e.AnimalStats(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskCompleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				t, err := e.CreateTask(ctx, actor, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.FarmID, "farm", "", "farm id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339)")
	cmd.Flags().StringSliceVar(&opts.AssignedTo, "assign", nil, "assignee user ids")
	_ = cmd.MarkFlagRequired("farm")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a farm's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				tasks, err := e.ListTasks(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Priority", "Status", "Due"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Category, t.Priority, t.Status, t.DueDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.FarmID, "farm", "", "farm id")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.AssignedTo, "assignee", "", "assignee user id")
	_ = cmd.MarkFlagRequired("farm")
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				t, err := e.CompleteTask(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func activityCmd() *cobra.Command {
	activity := &cobra.Command{Use: "activity", Short: "Inspect the activity ledger"}
	activity.AddCommand(activityTailCmd())
	activity.AddCommand(activityStatsCmd())
	return activity
}

func activityTailCmd() *cobra.Command {
	var farmID string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show a farm's latest activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				items, total, err := e.ActivitiesByFarm(ctx, actor, farmID, ledger.Page{Limit: limit, Offset: offset})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"items": items, "total": total})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Seq", "Type", "Action", "Description", "Actor", "At"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.Seq, a.Type, a.Action, a.Description, a.ActorID, a.CreatedAt})
				}
				tw.Render()
				fmt.Printf("total: %d\n", total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&farmID, "farm", "", "farm id")
	cmd.Flags().IntVar(&limit, "n", 20, "number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "offset")
	_ = cmd.MarkFlagRequired("farm")
	return cmd
}

func activityStatsCmd() *cobra.Command {
	var farmID string
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Activity counts by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor authz.Actor) error {
				stats, err := e.ActivityStats(ctx, actor, farmID, days)
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	cmd.Flags().StringVar(&farmID, "farm", "", "farm id")
	cmd.Flags().IntVar(&days, "days", 0, "trailing window in days (defaults to config)")
	_ = cmd.MarkFlagRequired("farm")
	return cmd
}

func tokenCmd() *cobra.Command {
	var email string
	var ttlHours int
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if s := os.Getenv("FARMSAVVY_AUTH_JWT_SECRET"); s != "" {
				cfg.Auth.JWTSecret = s
			}
			if ttlHours <= 0 {
				ttlHours = cfg.Auth.TokenTTLHours
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Repo.GetUserByEmail(ctx, email)
				if err != nil {
					return err
				}
				token, err := server.IssueToken(cfg.Auth.JWTSecret, u.ID, u.Email, u.Role, time.Duration(ttlHours)*time.Hour, time.Now())
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().IntVar(&ttlHours, "ttl-hours", 0, "token lifetime (defaults to config)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
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
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	e := engine.New(conn, cfg, ledger.New(conn, log))
	return fn(ctx, e)
}

// withActor resolves --as into an authz actor before running fn.
func withActor(ctx context.Context, fn func(context.Context, engine.Engine, authz.Actor) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		email := strings.TrimSpace(viper.GetString("as"))
		if email == "" && e.Config != nil {
			email = e.Config.Admin.Email
		}
		if email == "" {
			return fmt.Errorf("acting user not specified; use --as <email>")
		}
		u, err := e.Repo.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("acting user %s not found; create with fsv user create", email)
			}
			return err
		}
		return fn(ctx, e, authz.Actor{ID: u.ID, Role: u.Role})
	})
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
