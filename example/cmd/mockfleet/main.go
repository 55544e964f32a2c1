// Standalone mock fleet API for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockfleet
//
// Then in another terminal:
//
//	go run ./cmd/fleetview start -c example/fleet.yaml
//	go run ./cmd/fleetview watch -c example/fleet.yaml
//	go run ./cmd/fleetview tiles -c example/fleet.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jpalmerr/fleetview/internal/mockfleet"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8090", "listen address, also reported as every instance's external IP")
	demo := flag.String("demo", "fractal", "demo name in the API paths")
	stage := flag.Duration("stage", mockfleet.DefaultStageDuration, "time spent in each transient status")
	token := flag.String("token", "", "require this token parameter on fleet API requests")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	opts := []mockfleet.Option{
		mockfleet.WithStageDuration(*stage),
		mockfleet.WithExternalIP(*addr),
		mockfleet.WithLogger(logger),
	}
	if *token != "" {
		opts = append(opts, mockfleet.WithToken(*token))
	}
	fleet, err := mockfleet.New(*demo, opts...)
	if err != nil {
		logger.Error("invalid options", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Mock fleet API on http://%s/%s\n", *addr, *demo)
	fmt.Println("Instances go PROVISIONING → STAGING → RUNNING, then STOPPING on cleanup")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	server := &http.Server{
		Addr:              *addr,
		Handler:           fleet.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
