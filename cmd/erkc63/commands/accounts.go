package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(unbindCmd)
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Prints the accounts bound to the cabinet.",
	Run: func(cmd *cobra.Command, args []string) {
		c, _, closeClient := openClient(cmd.Context())
		defer closeClient()

		accounts, err := c.Accounts()
		if err != nil {
			fatal("failed to list accounts", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Account"})
		for _, a := range accounts {
			t.AppendRow(table.Row{a})
		}
		t.Render()
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Prints the address and balance of an account.",
	Run: func(cmd *cobra.Command, args []string) {
		c, account, closeClient := openClient(cmd.Context())
		defer closeClient()

		info, err := c.AccountInfo(cmd.Context(), account)
		if err != nil {
			fatal("failed to fetch account info", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Account", "Address", "Balance", "Peni"})
		t.AppendRow(table.Row{info.Account, info.Address, info.Balance, info.Peni})
		t.Render()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <account>...",
	Short: "Looks up accounts anonymously, no login needed.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		accounts, err := parseAccountArgs(args)
		if err != nil {
			fatal("bad account number", err)
		}

		c, closeClient := anonClient()
		defer closeClient()

		infos, err := c.PubAccountsInfo(cmd.Context(), accounts...)
		if err != nil {
			fatal("failed to check accounts", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Account", "Address", "Balance", "Peni"})
		for _, a := range accounts {
			info, ok := infos[a]
			if !ok {
				t.AppendRow(table.Row{a, "not found", "", ""})
				continue
			}
			t.AppendRow(table.Row{info.Account, info.Address, info.Balance, info.Peni})
		}
		t.Render()
	},
}

var bindAmount *float64

func init() {
	bindAmount = bindCmd.Flags().Float64("amount", 0, "Current balance of the account, proves ownership.")
}

var bindCmd = &cobra.Command{
	Use:   "bind <account> [--amount <balance>]",
	Short: "Binds an account to the cabinet.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		accounts, err := parseAccountArgs(args)
		if err != nil {
			fatal("bad account number", err)
		}

		c, _, closeClient := openClient(cmd.Context())
		defer closeClient()

		if *bindAmount > 0 {
			err = c.BindAccount(cmd.Context(), accounts[0], *bindAmount)
		} else {
			// without an amount, look the balance up anonymously first
			pub, perr := c.PubAccountInfo(cmd.Context(), accounts[0])
			if perr != nil {
				fatal("failed to look up the account", perr)
			}
			if pub == nil {
				fatal("account not found", fmt.Errorf("account %d is unknown to the portal", accounts[0]))
			}
			err = c.BindPublicAccount(cmd.Context(), *pub)
		}
		if err != nil {
			fatal("failed to bind account", err)
		}
		fmt.Println("bound", accounts[0])
	},
}

var unbindCmd = &cobra.Command{
	Use:   "unbind <account>",
	Short: "Unbinds an account from the cabinet.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		accounts, err := parseAccountArgs(args)
		if err != nil {
			fatal("bad account number", err)
		}

		c, _, closeClient := openClient(cmd.Context())
		defer closeClient()

		if err := c.UnbindAccount(cmd.Context(), accounts[0]); err != nil {
			fatal("failed to unbind account", err)
		}
		fmt.Println("unbound", accounts[0])
	},
}
