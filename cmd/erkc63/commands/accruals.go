package commands

import (
	"erkc63/lib/client"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var accrualsYear *int
var accrualsLimit *int
var accrualsDetails *bool

func init() {
	accrualsYear = accrualsCmd.Flags().Int("year", 0, "Year to list, defaults to the last closed billing period's.")
	accrualsLimit = accrualsCmd.Flags().Int("limit", 0, "Number of billing periods to list, 0 for all.")
	accrualsDetails = accrualsCmd.Flags().Bool("details", false, "Include the expense breakdown of every period.")
	rootCmd.AddCommand(accrualsCmd)
}

var accrualsCmd = &cobra.Command{
	Use:   "accruals [--year <year>] [--limit <n>] [--details]",
	Short: "Prints the billing receipts of a year.",
	Run: func(cmd *cobra.Command, args []string) {
		c, account, closeClient := openClient(cmd.Context())
		defer closeClient()

		accruals, err := c.YearAccruals(cmd.Context(), client.YearAccrualsRequest{
			Account:        account,
			Year:           *accrualsYear,
			Limit:          *accrualsLimit,
			IncludeDetails: *accrualsDetails,
		})
		if err != nil {
			fatal("failed to fetch accruals", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Period", "Summa", "Peni", "Bill", "Peni doc"})
		for _, a := range accruals {
			t.AppendRow(table.Row{a.Date.Format("01.2006"), a.Summa, a.Peni, a.BillID, a.PeniID})
		}
		t.Render()

		if *accrualsDetails {
			for _, a := range accruals {
				d := newTable()
				d.SetTitle(a.Date.Format("01.2006"))
				d.AppendHeader(table.Row{"Service", "Accrued", "Recalc", "Paid", "Debt"})
				for name, row := range a.Details {
					d.AppendRow(table.Row{name, row.Accrued, row.Recalc, row.Paid, row.Debt})
				}
				d.Render()
			}
		}
	},
}
