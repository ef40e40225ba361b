package main

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/scolink/internal/config"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running daemon's SCO connection state",
	RunE:  runStatus,
}

var statusDump bool

func init() {
	statusCmd.Flags().BoolVarP(&statusDump, "dump", "d", false, "Include the full state snapshot")
	statusCmd.Flags().StringP("socket", "s", "", "Status socket path (overrides config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if sock, _ := cmd.Flags().GetString("socket"); sock != "" {
		cfg.Socket = sock
	}

	conn, err := net.DialTimeout("unix", cfg.SocketPath(), 2*time.Second)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	defer conn.Close()

	command := "status"
	if statusDump {
		command = "dump"
	}
	if err := json.NewEncoder(conn).Encode(StatusRequest{Command: command}); err != nil {
		return err
	}
	var resp StatusResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}

	fmt.Printf("state:  %s\n", colorizeState(resp.State))
	fmt.Printf("audio:  %s\n", colorizeBool(resp.AudioConnected))
	fmt.Printf("detail: %s\n", resp.MachineState)
	if resp.Dump != "" {
		fmt.Println(resp.Dump)
	}
	return nil
}

func colorizeState(state string) string {
	switch state {
	case "CONNECTED":
		return color.New(color.FgGreen).Sprint(state)
	case "CONNECTING":
		return color.New(color.FgYellow).Sprint(state)
	case "DISCONNECTED":
		return color.New(color.FgRed).Sprint(state)
	default:
		return color.New(color.FgCyan).Sprint(state)
	}
}

func colorizeBool(up bool) string {
	if up {
		return color.New(color.FgGreen).Sprint("connected")
	}
	return color.New(color.FgRed).Sprint("disconnected")
}
