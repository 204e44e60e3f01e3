package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/preceptor/internal/api"
	"github.com/kalambet/preceptor/internal/catalog"
	"github.com/kalambet/preceptor/internal/config"
	"github.com/kalambet/preceptor/internal/evaluation"
	"github.com/kalambet/preceptor/internal/grounding"
	"github.com/kalambet/preceptor/internal/matching"
	"github.com/kalambet/preceptor/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the preceptor server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running preceptor server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show preceptor system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "preceptor.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "preceptor version %s\n", version)

	// Load also validates the scoring tables and threshold matrix; a bad
	// probability or threshold configuration stops the process here.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.GetAPIToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("preceptor is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("preceptor is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Load and normalize catalogs. Missing or malformed catalog files degrade
	// to empty collections with a warning; an empty case catalog surfaces as
	// a typed error at assignment time, never as a placeholder case.
	cases := catalog.LoadCases(cfg.Catalog.CasesPath)
	patients := catalog.LoadPatients(cfg.Catalog.PatientsPath)
	students := catalog.LoadStudents(cfg.Catalog.StudentsPath)
	slog.Info("catalogs loaded", "cases", len(cases), "patients", len(patients), "students", len(students))

	// Mirror the roster into storage so evaluation requests can resolve the
	// student's class standing.
	for _, s := range students {
		if err := store.UpsertStudent(storage.StudentRow{ID: s.ID, Name: s.Name, ClassStanding: s.ClassStanding}); err != nil {
			return fmt.Errorf("syncing roster: %w", err)
		}
	}

	// Build services.
	evalSvc, err := evaluation.NewService(store, cfg.Scoring, cfg.Thresholds)
	if err != nil {
		return err
	}
	assignSvc := matching.NewService(store, cases, patients)

	resolver := grounding.NewResolver(
		time.Duration(cfg.Grounding.AttemptTimeoutMS)*time.Millisecond,
		grounding.NewSemanticClient(cfg.Grounding.SemanticBaseURL, cfg.Grounding.TopK),
		grounding.NewKeywordProvider(store, cfg.Grounding.TopK),
		grounding.NewStaticCorpus(cfg.Grounding.CorpusDir),
	)

	// Build HTTP handler and server.
	appHandler := api.NewAppHandler(api.AppDeps{
		Store:       store,
		Evaluations: evalSvc,
		Assignments: assignSvc,
		Resolver:    resolver,
		Token:       apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:       store,
		Evaluations: evalSvc,
		Assignments: assignSvc,
		Resolver:    resolver,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "preceptor listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("preceptor is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop preceptor (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to preceptor (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Case catalog", "%s", cfg.Catalog.CasesPath)
	printStatus("Patient catalog", "%s", cfg.Catalog.PatientsPath)
	printStatus("Student roster", "%s", cfg.Catalog.StudentsPath)
	printStatus("Grounding corpus", "%s", cfg.Grounding.CorpusDir)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
