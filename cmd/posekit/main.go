package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AltairaLabs/PoseKit/config"
	"github.com/AltairaLabs/PoseKit/logger"
)

const envPrefix = "POSEKIT"

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "posekit",
		Short:         "PoseKit - realtime pose and metrics telemetry client",
		Version:       GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
		Long: `PoseKit connects to the sports-vision telemetry service, tracks the
active training session and renders pose skeletons.

Without a backend it can run a fully synthetic demo session and produce
deterministic training history for the demo users.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(cmd); err != nil {
				return err
			}
			cfg, err := loadConfiguration(cmd)
			if err != nil {
				return err
			}
			if err := logger.Configure(cfg.LoggingSpec()); err != nil {
				return fmt.Errorf("failed to configure logging: %w", err)
			}
			if cmd.Flags().Changed("verbose") {
				verbose, err := cmd.Flags().GetBool("verbose")
				if err != nil {
					return fmt.Errorf("failed to get verbose flag: %w", err)
				}
				logger.SetVerbose(verbose)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to a posekit YAML config file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().String("environment", "", "Endpoint environment (production or development)")
	cmd.PersistentFlags().String("token", "", "Bearer token for the REST backend")
	cmd.PersistentFlags().String("ws-url", "", "Override the websocket base URL")
	cmd.PersistentFlags().String("api-url", "", "Override the REST base URL")
	cmd.PersistentFlags().String("env-file", "", "Load POSEKIT_* variables from a dotenv file")

	bindFlags(viper.GetViper(), cmd.PersistentFlags(), map[string]string{
		"environment":       "environment",
		"rest.token":        "token",
		"transport.baseURL": "ws-url",
		"rest.baseURL":      "api-url",
	})

	cmd.AddCommand(newWatchCmd(), newDemoCmd(), newHistoryCmd(), newRenderCmd(), newDevicesCmd())
	return cmd
}

// bindFlags binds each viper key to the named flag in fs.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) {
	for key, name := range bindings {
		_ = v.BindPFlag(key, fs.Lookup(name))
	}
}

// loadEnvFile loads the --env-file dotenv file into the process environment.
// Variables already set are left untouched.
func loadEnvFile(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadConfiguration reads the config file, if any, and layers flag and
// POSEKIT_* environment overrides on top through viper.
func loadConfiguration(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg := config.Default()
	if configFile != "" {
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	v := viper.GetViper()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("environment"); s != "" && s != cfg.Environment {
		derived := cfg.REST.BaseURL == config.RESTBase(cfg.Environment)
		cfg.Environment = s
		if derived {
			cfg.REST.BaseURL = config.RESTBase(s)
		}
	}
	if s := v.GetString("rest.token"); s != "" {
		cfg.REST.Token = s
	}
	if s := v.GetString("transport.baseURL"); s != "" {
		cfg.Transport.BaseURL = s
	}
	if s := v.GetString("rest.baseURL"); s != "" {
		cfg.REST.BaseURL = s
	}

	activeConfig = cfg
	return cfg, nil
}

// activeConfig is the configuration resolved by the root command's pre-run hook.
var activeConfig *config.Config

func currentConfig() *config.Config {
	if activeConfig == nil {
		return config.Default()
	}
	return activeConfig
}

// setupVersion configures the version display
func setupVersion() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
}

func Execute() {
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
