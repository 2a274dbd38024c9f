package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zapdesk/zapdesk/internal/convstate"
	"github.com/zapdesk/zapdesk/internal/store"
)

var stoplistCmd = &cobra.Command{
	Use:   "stoplist",
	Short: "Manage contacts excluded from automated replies",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var stoplistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stop-listed contacts",
	Run: func(cmd *cobra.Command, args []string) {
		st, _, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		state := convstate.NewManager(st)
		ids, err := state.StopList()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(ids) == 0 {
			fmt.Println("Stop-list is empty.")
			return
		}
		for _, id := range ids {
			contact, err := st.GetContact(id)
			if err != nil {
				fmt.Printf("%s (contact record missing)\n", id)
				continue
			}
			fmt.Printf("%s  %s\n", contact.Address, contact.DisplayName)
		}
	},
}

var stoplistAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Exclude a contact from automated replies",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, _, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		state := convstate.NewManager(st)
		contact, err := state.UpsertContact(args[0], "", false)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if err := state.AddToStopList(contact.ID); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s stop-listed\n", args[0])
	},
}

var stoplistRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Restore automated replies for a contact",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, _, err := openServices()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		contact, err := st.GetContactByAddress(args[0])
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("Unknown contact: %s\n", args[0])
			os.Exit(1)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		state := convstate.NewManager(st)
		if err := state.RemoveFromStopList(contact.ID); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s removed from stop-list\n", args[0])
	},
}

func init() {
	stoplistCmd.AddCommand(stoplistListCmd)
	stoplistCmd.AddCommand(stoplistAddCmd)
	stoplistCmd.AddCommand(stoplistRemoveCmd)
}
