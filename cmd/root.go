// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formprobe/internal/config"
	"github.com/xkilldash9x/formprobe/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// envPrefix namespaces every environment override, e.g. FORMPROBE_WAIT_DEFAULT_TIMEOUT.
const envPrefix = "FORMPROBE"

// dependencies are the external resources the subcommands reach for.
// Tests replace them with in-memory fakes.
type dependencies struct {
	drivers driverFactory
	stores  storeProvider
}

func defaultDependencies() dependencies {
	return dependencies{
		drivers: chromeDriverFactory{},
		stores:  NewStoreProvider(),
	}
}

// NewRootCommand builds a fresh command tree. Each call is independent, so
// flags parsed by one invocation never leak into the next.
func NewRootCommand() *cobra.Command {
	return newRootCmd(defaultDependencies())
}

func newRootCmd(deps dependencies) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "formprobe",
		Short: "formprobe drives browser scenarios against a web form and reports the results.",
		Long: `formprobe opens a real browser per scenario, fills and submits a web form,
checks the resulting alert and writes a report with step timings and screenshots.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting formprobe", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(newRunCmd(deps.drivers, deps.stores))
	rootCmd.AddCommand(newHistoryCmd(deps.stores))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// initializeConfig reads the optional config file and layers environment
// overrides on top of the defaults already set on v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default config is fine; an explicit --config must exist.
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// getConfigFromContext returns the config stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	if ctx == nil {
		return nil, fmt.Errorf("command context is nil")
	}
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in command context")
	}
	return cfg, nil
}

// Execute runs the root command with ctx. Cobra prints the error itself;
// the returned value only drives the exit code.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	err := NewRootCommand().ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Info("Run interrupted.")
	}
	return err
}
