package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantops/pipedash/internal/config"
	"github.com/quantops/pipedash/internal/server"
)

var killCmd = &cobra.Command{
	Use:   "kill <logfile>",
	Short: "Cancel a job running under the dashboard server",
	Long: `Ask the running pipedash server to cancel an active job, identified
by its log file name. The active set lives in the server process, so this
talks to its HTTP API rather than signalling the process directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runKill,
}

func init() {
	killCmd.Flags().StringP("config", "c", "pipedash.yaml", "Path to configuration file")
	killCmd.Flags().String("addr", "", "Server address (overrides config)")
}

func runKill(cmd *cobra.Command, args []string) error {
	logFile := args[0]
	configPath, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")

	if addr == "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		addr = cfg.Server.Addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	body, err := json.Marshal(server.KillRequest{Logfile: logFile})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post("http://"+addr+"/builds/kill", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("is the server running? %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Printf("cancellation requested for %s\n", logFile)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job %s is not active", logFile)
	default:
		var apiErr server.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("kill failed: %s", apiErr.Message)
		}
		return fmt.Errorf("kill failed: HTTP %d", resp.StatusCode)
	}
}
