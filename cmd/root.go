package cmd

import (
	"fmt"
	"os"

	"github.com/AlfredBerg/rootdata-sync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var envFile string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rootdata-sync.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "A dotenv file loaded into the environment before the config is read. Missing files are ignored.")
	rootCmd.PersistentFlags().String("log-level", "info", "The log level: debug, info, warn or error.")
	rootCmd.PersistentFlags().Bool("log-dev", false, "Human readable console logs instead of JSON.")
	rootCmd.PersistentFlags().String("remote", config.DriverAirtable, "The remote store to sync to: airtable or sqlite.")

	cobra.CheckErr(viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("log.development", rootCmd.PersistentFlags().Lookup("log-dev")))
	cobra.CheckErr(viper.BindPFlag("remote.driver", rootCmd.PersistentFlags().Lookup("remote")))
}

// initConfig reads in the dotenv file, config file and ENV variables if set.
func initConfig() {
	cobra.CheckErr(config.LoadDotEnv(envFile))

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rootdata-sync" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rootdata-sync")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

var rootCmd = &cobra.Command{
	Use:   "rootdata-sync",
	Short: "Scrapes the rootdata fundraising listing and syncs new projects to Airtable",
	Long: `rootdata-sync logs in to rootdata.com with a headless browser, walks the
fundraising listing page by page, appends every project to a local JSON archive
and pushes the ones the remote store does not know yet.

Use "run" for a single pass or "serve" to run passes from an HTTP cron trigger.`,
	SilenceUsage: true,
}
