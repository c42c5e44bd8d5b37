package cmd

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	webview "github.com/webview/webview_go"

	"github.com/kartoza/attention-is-key/internal/config"
	"github.com/kartoza/attention-is-key/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web application",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		headless, _ := cmd.Flags().GetBool("headless")

		// Resolve the data directory, falling back to the user config dir
		if cfg.DataDir == "" {
			if dir, err := config.DataStoreDir(); err == nil {
				cfg.DataDir = dir
			} else {
				log.Printf("Warning: no data directory, content index kept in memory: %v", err)
			}
		}
		if cfg.DataDir != "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("could not create data directory: %w", err)
			}
		}

		// Find an available port (try up to 10 ports starting from the requested one)
		requested := cfg.Port
		cfg.Port, err = findAvailablePort(requested, 10)
		if err != nil {
			return fmt.Errorf("failed to find available port: %w", err)
		}
		if cfg.Port != requested {
			log.Printf("Port %d in use, using port %d instead", requested, cfg.Port)
		}

		log.Printf("Attention is Key v%s starting on port %d", cfg.Version, cfg.Port)
		log.Printf("Engine: %s", cfg.Engine)
		log.Printf("Data directory: %s", cfg.DataDir)

		analyzer, err := server.NewAnalyzer(cfg)
		if err != nil {
			return fmt.Errorf("failed to create analyzer: %w", err)
		}

		// Create and start the server
		srv, err := server.New(cfg, analyzer)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		// Graceful shutdown on SIGINT/SIGTERM
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		// Start server in background
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		// Wait for server to be ready
		serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
		waitForServer(serverURL, 10*time.Second)

		if headless {
			// Headless mode: wait for signal or error
			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			case sig := <-stop:
				log.Printf("Received %v signal, shutting down...", sig)
				if err := srv.Stop(); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}
			return nil
		}

		// GUI mode: open embedded WebView window
		log.Printf("Opening application window...")
		w := webview.New(false)
		defer w.Destroy()

		w.SetTitle("Attention is Key")
		w.SetSize(1280, 800, webview.HintNone)
		w.Navigate(serverURL)

		// When the webview window closes, shut down the server
		go func() {
			select {
			case err := <-errCh:
				if err != nil {
					log.Printf("Server error: %v", err)
				}
			case sig := <-stop:
				log.Printf("Received %v signal, shutting down...", sig)
				w.Terminate()
			}
		}()

		// Run blocks until the window is closed
		w.Run()

		log.Printf("Window closed, shutting down server...")
		if err := srv.Stop(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	serveCmd.Flags().String("data-dir", "", "Directory for the content index (defaults to the user config dir)")
	serveCmd.Flags().Duration("mock-latency", config.Default().MockLatency, "Simulated latency of the mock engine")
	serveCmd.Flags().Bool("headless", false, "Run in headless mode (no GUI window)")
	rootCmd.AddCommand(serveCmd)
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Printf("Warning: server may not be ready at %s", url)
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
