package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/settings"
	"github.com/zapdesk/zapdesk/internal/store"
)

// openServices opens the store and settings service for operator commands.
func openServices() (*store.Store, *settings.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(filepath.Join(cfg.Paths.DataDir, "zapdesk.db"))
	if err != nil {
		return nil, nil, err
	}
	svc := settings.NewService(st)
	if err := svc.EnsureDefaults(); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, svc, nil
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change runtime settings",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings with their current values",
	Run: func(cmd *cobra.Command, args []string) {
		st, svc, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		all, err := svc.List()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-24s %s\n", k, all[k])
		}
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, svc, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		value, ok, err := svc.Get(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Printf("Unknown setting: %s\n", args[0])
			os.Exit(1)
		}
		fmt.Println(value)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Change one setting (value must be valid JSON)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		st, svc, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		if err := svc.Set(args[0], args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s updated\n", args[0])
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}
