package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/viera/internal/api"
	"github.com/muurk/viera/internal/bridge"
	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/version"
)

const shutdownTimeout = 10 * time.Second

// Daemon flags
var (
	mqttBroker  string
	topicPrefix string
	apiListen   string
)

func init() {
	bridgeCmd.Flags().StringVar(&mqttBroker, "broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (default from configuration)")
	bridgeCmd.Flags().StringVar(&topicPrefix, "topic-prefix", "", "Topic prefix (default from configuration, \"viera\")")
	serveCmd.Flags().StringVar(&apiListen, "listen", "", "Listen address (default from configuration, 127.0.0.1:8080)")

	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(serveCmd)
}

// bridgeCmd relays MQTT messages to remembered televisions
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay MQTT command messages to televisions",
	Long: `Connect to an MQTT broker and send commands published to
<prefix>/<device>/command to the remembered television called <device>.

The payload is a command name ("mute"), a name and a number ("num 23") or
JSON ({"command":"num","argument":23}). Each outcome is published as JSON to
<prefix>/<device>/result. Commands to one television run in order.`,
	Example: `  viera bridge --broker tcp://homeassistant.local:1883

  # then, from any MQTT client
  mosquitto_pub -t viera/living-room/command -m power`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func runBridge(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	settings := reg.MQTTSettings()
	if mqttBroker != "" {
		settings.Broker = mqttBroker
	}
	if topicPrefix != "" {
		settings.TopicPrefix = topicPrefix
	}
	if settings.Broker == "" {
		return fmt.Errorf("no MQTT broker configured; set mqtt.broker in the configuration or pass --broker")
	}

	client := bridge.NewClient(bridge.ClientOptions{
		Broker:      settings.Broker,
		ClientID:    settings.ClientID,
		Username:    settings.Username,
		Password:    settings.Password(),
		QoS:         settings.QoS,
		TopicPrefix: settings.TopicPrefix,
	})

	b := bridge.New(bridge.Config{TopicPrefix: settings.TopicPrefix},
		func(name string) (bridge.Sender, error) {
			device, err := reg.Device(name)
			if err != nil {
				return nil, err
			}
			return device, nil
		}, client)

	if err := client.Connect(b.CommandTopic(), b.HandleMessage); err != nil {
		return err
	}

	fmt.Printf("viera %s bridging %s on %s (Ctrl+C to stop)\n", version.Version, b.CommandTopic(), settings.Broker)

	<-cmd.Context().Done()
	logging.Info("Shutting down bridge")

	drained := make(chan struct{})
	go func() {
		b.Drain()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownTimeout):
		logging.Warn("Pending commands abandoned", zap.Duration("waited", shutdownTimeout))
		b.Close()
	}

	client.Close()
	return nil
}

// serveCmd runs the REST API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	Long: `Serve a small HTTP API for remembered televisions:

  GET  /healthz
  GET  /commands
  GET  /devices
  GET  /devices/<name>
  POST /devices/<name>/commands/<command>?arg=N`,
	Example: `  viera serve --listen 0.0.0.0:8080

  curl -X POST localhost:8080/devices/living-room/commands/vol_up`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	addr := reg.APIListen()
	if apiListen != "" {
		addr = apiListen
	}

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(addr, reg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Printf("viera %s serving on http://%s (Ctrl+C to stop)\n", version.Version, addr)

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
