package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ldi/taproot/internal/api"
	"github.com/ldi/taproot/internal/config"
	"github.com/ldi/taproot/internal/db"
	"github.com/ldi/taproot/internal/mcp"
	"github.com/ldi/taproot/internal/server"
	"github.com/ldi/taproot/internal/store"
	"github.com/ldi/taproot/internal/tui"
	"github.com/ldi/taproot/internal/ui"
	"github.com/ldi/taproot/internal/views"
	"github.com/ldi/taproot/pkg/models"
)

var (
	configPath string
	dbPath     string
	serverURL  string
	verbose    bool
)

func main() {
	flag.StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	flag.StringVar(&dbPath, "db-path", "", "Path to database file (overrides config)")
	flag.StringVar(&serverURL, "server", "", "Base URL of the todo server (overrides config)")
	flag.BoolVar(&verbose, "verbose", false, "Log every collection change to stderr")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	var command string
	var args []string
	if flag.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
	} else {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	switch command {
	case "init":
		err = runInit(cfg)
	case "serve":
		err = runServe(cfg, args)
	case "tui":
		err = runTUI(cfg)
	case "mcp":
		err = runMCP(cfg)
	case "list":
		err = runList(cfg, args)
	case "stats":
		err = runStats(cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Commands: init, serve, tui, mcp, list, stats")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.ResolveConfigPath()
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	return cfg, nil
}

func runInit(cfg config.Config) error {
	path := configPath
	if path == "" {
		path = config.ResolveConfigPath()
	}
	fmt.Printf("✓ Config at %s\n", path)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Init(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Printf("✓ Initialized database at %s\n", cfg.DBPath)
	return nil
}

func runServe(cfg config.Config, args []string) error {
	serveFlags := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := serveFlags.String("addr", cfg.ListenAddr, "Address to listen on")
	if err := serveFlags.Parse(args); err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Init(ctx); err != nil {
		return err
	}

	if verbose {
		database.SetOnChange(func(context.Context) {
			fmt.Fprintf(os.Stderr, "[%s] todo collection changed\n", time.Now().Format(time.RFC3339))
		})
	}

	srv := server.NewServer(database)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Serving todos on %s\n", *addr)
	if err := srv.Start(*addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runTUI(cfg config.Config) error {
	st := store.NewStore(api.NewClient(cfg.ServerURL))
	return tui.Run(st, cfg)
}

func runMCP(cfg config.Config) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Init(context.Background()); err != nil {
		return err
	}

	s := mcp.NewServer(database)
	return mcp.Serve(s)
}

func runList(cfg config.Config, args []string) error {
	listFlags := flag.NewFlagSet("list", flag.ContinueOnError)
	viewFlag := listFlags.String("view", cfg.DefaultView, "View filter (all, active, completed, overdue, high-priority, today)")
	sortFlag := listFlags.String("sort", "default", "Sort key (default, created, updated, priority, due, completed)")
	descFlag := listFlags.Bool("desc", false, "Sort descending")
	if err := listFlags.Parse(args); err != nil {
		return err
	}

	st := store.NewStore(api.NewClient(cfg.ServerURL))
	ctx := context.Background()
	if err := st.Load(ctx); err != nil {
		return err
	}

	dir := models.SortAsc
	if *descFlag {
		dir = models.SortDesc
	}
	now := time.Now()
	tasks := views.Sort(views.Filter(st.Tasks(), models.View(*viewFlag), now), models.SortKey(*sortFlag), dir)

	printTree(tasks, 0, now)
	return nil
}

func printTree(tasks []*models.Task, depth int, now time.Time) {
	for _, t := range tasks {
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		line := fmt.Sprintf("%s%s %s (%s)", strings.Repeat("  ", depth), check, t.Text, t.Priority)
		if t.DueDate != nil {
			line += " due " + t.DueDate.Format("2006-01-02")
			if !t.Completed && t.Overdue(now) {
				line += " OVERDUE"
			}
		}
		fmt.Println(line)
		printTree(t.Children, depth+1, now)
	}
}

func runStats(cfg config.Config) error {
	client := api.NewClient(cfg.ServerURL)
	stats, err := client.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Println("Todo Stats")
	fmt.Println("==========")
	fmt.Printf("Total:     %d\n", stats.Total)
	fmt.Printf("Completed: %d\n", stats.Completed)
	fmt.Printf("Pending:   %d\n", stats.Pending)
	fmt.Printf("Overdue:   %d\n", stats.Overdue)
	fmt.Printf("Due Today: %d\n", stats.DueToday)
	fmt.Println("\nBy Priority:")
	fmt.Printf("  High:   %d\n", stats.ByPriority[models.PriorityHigh])
	fmt.Printf("  Medium: %d\n", stats.ByPriority[models.PriorityMedium])
	fmt.Printf("  Low:    %d\n", stats.ByPriority[models.PriorityLow])
	return nil
}
