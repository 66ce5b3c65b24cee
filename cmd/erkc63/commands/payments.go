package commands

import (
	"erkc63/lib/client"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var paymentsFrom *string
var paymentsTo *string

func init() {
	paymentsFrom = paymentsCmd.Flags().String("from", "", "Window start, dd.mm.yyyy.")
	paymentsTo = paymentsCmd.Flags().String("to", "", "Window end, dd.mm.yyyy.")
	rootCmd.AddCommand(paymentsCmd)
}

var paymentsCmd = &cobra.Command{
	Use:   "payments [--from <date>] [--to <date>]",
	Short: "Prints the posted payments of an account.",
	Run: func(cmd *cobra.Command, args []string) {
		start, err := parseDateFlag(*paymentsFrom)
		if err != nil {
			fatal("bad --from date", err)
		}
		end, err := parseDateFlag(*paymentsTo)
		if err != nil {
			fatal("bad --to date", err)
		}

		c, account, closeClient := openClient(cmd.Context())
		defer closeClient()

		payments, err := c.PaymentsHistory(cmd.Context(), client.PaymentsHistoryRequest{
			Account: account,
			Start:   start,
			End:     end,
		})
		if err != nil {
			fatal("failed to fetch payments", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Date", "Summa", "Description"})
		for _, p := range payments {
			t.AppendRow(table.Row{p.Date.Format("02.01.2006"), p.Summa, p.Description})
		}
		t.Render()
	},
}
