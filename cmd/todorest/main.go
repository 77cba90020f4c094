// main is the entry point for the todorest server and its tools
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cirocosta/todorest/internal/api"
	"github.com/cirocosta/todorest/internal/auth"
	"github.com/cirocosta/todorest/internal/config"
	"github.com/cirocosta/todorest/internal/identity"
	"github.com/cirocosta/todorest/internal/logging"
	"github.com/cirocosta/todorest/internal/repository"
	"github.com/cirocosta/todorest/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runServer(args)
	case "migrate":
		err = migrate(args)
	case "issue-token":
		err = issueToken(args)
	case "openapi-gen":
		err = generateOpenAPI(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`
Usage: todorest <command> [options]

Commands:
  run          Start the HTTP server
  migrate      Create the PostgreSQL schema
  issue-token  Mint a bearer token for an account
  openapi-gen  Generate OpenAPI documentation

Every command accepts -config <file.toml>; settings can also be given as
TODOREST_* environment variables.

Run 'todorest <command> -h' for more information on a command.
`)
}

// setup loads the configuration and the logger shared by every command
func setup(fs *flag.FlagSet, args []string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(fs, args)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}

// openTodoRepository returns the entity store selected by cfg and a function
// releasing it
func openTodoRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.TodoRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := repository.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}

		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}

		logger.Info("using postgres store")
		return repository.NewPostgresTodoRepository(pool), pool.Close, nil
	default:
		logger.Warn("using in-memory store, todos are lost on restart")
		return repository.NewInMemoryTodoRepository(), func() {}, nil
	}
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)

	cfg, logger, err := setup(fs, args)
	if err != nil {
		return err
	}

	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	// create context that listens for interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// setup dependencies
	todoRepo, closeRepo, err := openTodoRepository(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeRepo()

	todoService := service.NewTodoService(todoRepo)
	authenticator := auth.NewJWTAuthenticator([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)

	// create server
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(todoService, authenticator, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// wait for interrupt or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// shutdown server gracefully
	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout.Duration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func migrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)

	cfg, logger, err := setup(fs, args)
	if err != nil {
		return err
	}

	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate needs the %s store driver, got %s", config.DriverPostgres, cfg.Store.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.OpenPostgres(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		return err
	}

	logger.Info("schema is up to date")
	return nil
}

func issueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	id := fs.Int64("id", 0, "Account id, the token subject")
	username := fs.String("username", "", "Account username")
	ttl := fs.Duration("ttl", 0, "Token lifetime, defaults to auth.token_ttl")

	cfg, _, err := setup(fs, args)
	if err != nil {
		return err
	}

	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	lifetime := cfg.Auth.TokenTTL.Duration
	if *ttl > 0 {
		lifetime = *ttl
	}

	authenticator := auth.NewJWTAuthenticator([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
	token, err := authenticator.Issue(identity.Identity{ID: *id, Username: *username}, lifetime)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func generateOpenAPI(args []string) error {
	// only the output file is specific to this command
	fs := flag.NewFlagSet("openapi-gen", flag.ContinueOnError)
	output := fs.String("o", "openapi.json", "Output file path")

	_, logger, err := setup(fs, args)
	if err != nil {
		return err
	}

	// the mocks never run; the router is only built to be described
	r := api.NewRouter(api.NewMockTodoService(), api.MockAuthenticator{}, logger)

	data, err := r.OpenAPIJSON()
	if err != nil {
		return fmt.Errorf("marshal openapi spec: %w", err)
	}

	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return fmt.Errorf("write openapi spec to file '%s': %w", *output, err)
	}

	fmt.Printf("OpenAPI spec generated at %s\n", *output)
	return nil
}
