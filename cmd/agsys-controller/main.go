// edgehog-runtime core agent
// Main entry point for the OTA/containers/forwarder runtime.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agsys/edgehog-runtime/internal/engine"
	"github.com/agsys/edgehog-runtime/internal/rauc"
)

// Config represents the configuration file structure.
type Config struct {
	Device struct {
		UUID string `yaml:"uuid"`
		Name string `yaml:"name"`
	} `yaml:"device"`

	Upstream struct {
		Addr   string `yaml:"grpc_addr"`
		APIKey string `yaml:"api_key"`
		UseTLS bool   `yaml:"use_tls"`
	} `yaml:"upstream"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Ota struct {
		DownloadDir string `yaml:"download_dir"`
	} `yaml:"ota"`

	Forwarder struct {
		URL string `yaml:"url"`
	} `yaml:"forwarder"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "edgehog-runtime",
		Short: "edgehog-runtime core agent",
		Long:  "OTA update, container-resource reconciliation and remote-access forwarding for an edge device.",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the agent",
		RunE:  runAgent,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("edgehog-runtime v0.1.0")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/edgehog/runtime.yaml", "Configuration file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Device.UUID == "" {
		return fmt.Errorf("device.uuid is required")
	}
	if cfg.Upstream.APIKey == "" {
		return fmt.Errorf("upstream.api_key is required")
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.UpstreamAddr = cfg.Upstream.Addr
	engineCfg.APIKey = cfg.Upstream.APIKey
	engineCfg.UseTLS = cfg.Upstream.UseTLS

	if cfg.Storage.Path != "" {
		engineCfg.DatabasePath = cfg.Storage.Path
	}
	if cfg.Ota.DownloadDir != "" {
		engineCfg.OtaDownloadDir = cfg.Ota.DownloadDir
	}
	if cfg.Forwarder.URL != "" {
		engineCfg.ForwarderURL = cfg.Forwarder.URL
	}
	if cfg.Logging.Level != "" {
		engineCfg.LogLevel = cfg.Logging.Level
	}

	eng, err := engine.New(engineCfg, rauc.New())
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Starting edgehog-runtime for device %s", cfg.Device.UUID)
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	if err := eng.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
