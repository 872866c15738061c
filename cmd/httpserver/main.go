package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devwelkin/hermes-static/internal/routes"
	"github.com/devwelkin/hermes-static/internal/server"
)

// parseFlags turns the command line into a server config. The logger is left
// for the caller.
func parseFlags(args []string, stderr io.Writer) (server.Config, error) {
	fs := flag.NewFlagSet("httpserver", flag.ContinueOnError)
	fs.SetOutput(stderr)

	host := fs.String("host", server.DefaultHost, "address to bind")
	port := fs.Int("port", server.DefaultPort, "port to listen on")
	serveDir := fs.String("serve-dir", "", "serve and browse this directory instead of the route table")
	root := fs.String("root", server.DefaultRoot, "directory holding static assets and route targets")
	routeFile := fs.String("routes", "", "route file with one '<url-path> <file>' pair per line (default: built-in routes)")
	workers := fs.Int("workers", server.DefaultWorkers, "maximum connections handled at once")
	timeout := fs.Duration("timeout", server.DefaultReadTimeout, "idle read timeout per connection")
	errorTemplate := fs.String("error-template", "", "html template file for error pages")

	if err := fs.Parse(args); err != nil {
		return server.Config{}, err
	}
	if fs.NArg() > 0 {
		return server.Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *port < 0 || *port > 65535 {
		return server.Config{}, fmt.Errorf("invalid port %d", *port)
	}

	table := routes.Default()
	if *routeFile != "" {
		f, err := os.Open(*routeFile)
		if err != nil {
			return server.Config{}, err
		}
		defer f.Close()
		table, err = routes.Load(f)
		if err != nil {
			return server.Config{}, fmt.Errorf("%s: %w", *routeFile, err)
		}
	}

	return server.Config{
		Host:          *host,
		Port:          *port,
		ServeDir:      *serveDir,
		Root:          *root,
		Routes:        table,
		Workers:       *workers,
		ReadTimeout:   *timeout,
		ErrorTemplate: *errorTemplate,
	}, nil
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Fatalf("Error parsing arguments: %v", err)
	}
	cfg.Logger = logger

	srv, err := server.Serve(cfg)
	if err != nil {
		logger.Fatalf("Error starting server: %v", err)
	}
	addr := srv.Addr().String()
	if cfg.ServeDir != "" {
		logger.Printf("Serving directory %s on %s (http://%s/)", cfg.ServeDir, addr, addr)
	} else {
		logger.Printf("Server listening on %s (http://%s/)", addr, addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Println("Server terminated by user, waiting for open connections")
	closed := make(chan error, 1)
	go func() { closed <- srv.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			logger.Printf("Error closing listener: %v", err)
		}
	case <-sigChan:
		logger.Println("Second interrupt, abandoning open connections")
	case <-time.After(cfg.ReadTimeout + 5*time.Second):
		logger.Println("Open connections did not finish, abandoning them")
	}
	logger.Println("Server gracefully stopped")
}
