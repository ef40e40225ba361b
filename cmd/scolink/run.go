package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/scolink/internal/accessory"
	"github.com/srg/scolink/internal/bluez"
	"github.com/srg/scolink/internal/config"
	"github.com/srg/scolink/internal/profile"
	"github.com/srg/scolink/sco"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the SCO link coordinator daemon",
	Long: `Run the coordinator: connect to BlueZ over the system bus, watch headset
accessory state, and serve the observable connection state on a local unix
socket for the status command.`,
	RunE: runDaemon,
}

var (
	runAdapter string
	runSocket  string
)

func init() {
	runCmd.Flags().StringVarP(&runAdapter, "adapter", "a", "", "Bluetooth adapter (overrides config)")
	runCmd.Flags().StringVarP(&runSocket, "socket", "s", "", "Status socket path (overrides config)")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
}

// logNotifier is the daemon's routing collaborator: routing integration is
// external to this process, so add/remove notifications are logged and
// accepted.
type logNotifier struct {
	logger *logrus.Logger
}

func (n *logNotifier) NotifyConnectionChanged(dev *accessory.Descriptor, added bool) bool {
	n.logger.WithFields(logrus.Fields{
		"device": dev.String(),
		"added":  added,
	}).Info("SCO routing target changed")
	return true
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if runAdapter != "" {
		cfg.Adapter = runAdapter
	}
	if runSocket != "" {
		cfg.Socket = runSocket
	}

	bus, err := bluez.NewBus(cfg.Adapter, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	var broker *sco.Broker
	adapter := bluez.NewAdapter(bus, sinkProxy{&broker}, logger)
	broker = sco.NewBroker(sco.BrokerOptions{
		Provider:      adapter,
		Notifier:      &logNotifier{logger: logger},
		Preferences:   cfg,
		Logger:        logger,
		ProxyTimeout:  cfg.ProxyTimeout,
		QueueCapacity: cfg.QueueCapacity,
	})
	defer broker.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Shutting down")
		cancel()
	}()

	go broker.Run(ctx)
	go func() {
		if err := adapter.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("BlueZ watch terminated")
			cancel()
		}
	}()

	socketPath := cfg.SocketPath()
	_ = os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(socketPath)
	}()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.WithFields(logrus.Fields{
		"adapter": cfg.Adapter,
		"socket":  socketPath,
	}).Info("scolink daemon started")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go handleStatusConn(conn, broker)
	}
}

// sinkProxy defers sink resolution: the adapter needs the broker as its
// sink, and the broker needs the adapter as its provider. The broker
// pointer is set before Run starts, so the indirection is never nil when
// events flow.
type sinkProxy struct {
	broker **sco.Broker
}

func (s sinkProxy) OnAudioEvent(ev sco.AudioEvent) { (*s.broker).OnAudioEvent(ev) }
func (s sinkProxy) SetActiveDevice(dev *accessory.Descriptor) {
	(*s.broker).SetActiveDevice(dev)
}
func (s sinkProxy) OnProfileConnected(id profile.ID, handle profile.Handle) {
	(*s.broker).OnProfileConnected(id, handle)
}
func (s sinkProxy) OnProfileDisconnected(id profile.ID) {
	(*s.broker).OnProfileDisconnected(id)
}

func handleStatusConn(conn net.Conn, broker *sco.Broker) {
	defer conn.Close()

	var req StatusRequest
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		_ = json.NewEncoder(conn).Encode(StatusResponse{Error: "invalid request: " + err.Error()})
		return
	}

	resp := StatusResponse{
		State:          broker.CurrentState().String(),
		MachineState:   broker.MachineState().String(),
		AudioConnected: broker.IsAudioConnected(),
	}
	switch req.Command {
	case "status":
	case "dump":
		var sb strings.Builder
		broker.Dump(&sb)
		resp.Dump = sb.String()
	default:
		resp = StatusResponse{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
	_ = json.NewEncoder(conn).Encode(resp)
}
