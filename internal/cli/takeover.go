package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zapdesk/zapdesk/internal/convstate"
	"github.com/zapdesk/zapdesk/internal/store"
)

var takeoverOperator string

var takeoverCmd = &cobra.Command{
	Use:   "takeover",
	Short: "Hand a conversation to a human operator",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var takeoverOnCmd = &cobra.Command{
	Use:   "on <address>",
	Short: "Silence the bot for a contact while an operator replies",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setTakeover(args[0], true)
	},
}

var takeoverOffCmd = &cobra.Command{
	Use:   "off <address>",
	Short: "Return a conversation to the bot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setTakeover(args[0], false)
	},
}

func setTakeover(address string, enabled bool) {
	st, _, err := openServices()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	contact, err := st.GetContactByAddress(address)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Printf("Unknown contact: %s\n", address)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	state := convstate.NewManager(st)
	if err := state.SetTakeover(contact.ID, takeoverOperator, enabled); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if enabled {
		fmt.Printf("✅ Takeover active for %s\n", address)
	} else {
		fmt.Printf("✅ Bot resumed for %s\n", address)
	}
}

func init() {
	takeoverOnCmd.Flags().StringVar(&takeoverOperator, "operator", "", "Operator identifier to record")
	takeoverCmd.AddCommand(takeoverOnCmd)
	takeoverCmd.AddCommand(takeoverOffCmd)
}
