// Command grantmatch runs grant searches from the terminal, against the
// database or a YAML grant file, and manages the grant database.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/david/grant-matcher/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "grantmatch",
	Short: "Match funding requests to open grants",
	Long: `grantmatch interprets a free-text funding request, scores the open grants
against it with the configured completion services and prints the ranking.

Grants come from PostgreSQL (DATABASE_URL) or, with --grants, from a YAML file.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./grantmatch.yaml or ~/.config/grantmatch/config.yaml)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (overrides config)")
	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))

	rootCmd.AddCommand(searchCmd, filterCmd, listCmd, migrateCmd, importCmd, tokenCmd, versionCmd)
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("grantmatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "grantmatch"))
		}
	}

	viper.SetEnvPrefix("GRANTMATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads the file viper found through the config package, so the
// CLI and the server agree on format and defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	if v := databaseURLOverride(rootCmd.PersistentFlags(), os.Getenv); v != "" {
		cfg.DatabaseURL = v
	}
	return cfg, nil
}

// databaseURLOverride is the URL given by --database-url or
// GRANTMATCH_DATABASE_URL, the only sources that outrank DATABASE_URL.
func databaseURLOverride(fs *pflag.FlagSet, getenv func(string) string) string {
	if f := fs.Lookup("database-url"); f != nil && f.Changed {
		return f.Value.String()
	}
	return getenv("GRANTMATCH_DATABASE_URL")
}

// databaseURL resolves the connection string for commands that need no
// completion credentials: override, then DATABASE_URL, then the config
// file, then the default.
func databaseURL() string {
	if v := databaseURLOverride(rootCmd.PersistentFlags(), os.Getenv); v != "" {
		return v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	if v := viper.GetString("database_url"); v != "" {
		return v
	}
	return config.Default().DatabaseURL
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
