// Package main implements the tutorctl CLI for manual operations against
// the tutord HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the tutord HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tutorctl",
	Short: "CLI for tutord HTTP server operations",
	Long: `tutorctl is a command-line interface for interacting with the tutord HTTP server.
It provides commands for grading submissions, validating grading configs, and
checking server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "tutord server URL")
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(restartCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check tutord server health",
	Long: `Check the health status of the tutord HTTP server.

Examples:
  # Check health
  tutorctl health

  # Check health on a different server
  tutorctl health --server http://localhost:9090`,
	RunE: runHealth,
}

// restartCmd re-runs grading pipeline initialization
var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Re-initialize the grading pipeline",
	Long: `Ask the tutord server to reload its grading configuration.

A failed initialization is cached server-side; after fixing the grading
config on disk, restart makes the server pick it up without a redeploy.`,
	RunE: runRestart,
}

// HealthResponse matches internal/http/server.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// RestartResponse matches internal/http/server.go RestartResponse
type RestartResponse struct {
	Status string `json:"status"`
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Pipeline Ready: %t\n", healthResp.Ready)
	fmt.Printf("Server URL: %s\n", serverURL)

	return nil
}

// runRestart handles the restart command
func runRestart(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/restart", serverURL)

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	var restartResp RestartResponse
	if err := json.NewDecoder(resp.Body).Decode(&restartResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Pipeline Status: %s\n", restartResp.Status)
	return nil
}

// statusError renders a non-200 response as an error, including the body
// when it can be read.
func statusError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
	}
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
}
