package commands

import (
	"fmt"
	"os"
	"time"

	"erkc63/lib/client"

	"github.com/spf13/cobra"
)

var receiptMonth *string
var receiptPeni *bool
var receiptOut *string

func init() {
	receiptMonth = receiptCmd.Flags().String("month", "", "Billing period, mm.yyyy, defaults to the last closed one.")
	receiptPeni = receiptCmd.Flags().Bool("peni", false, "Download the penalty document instead of the bill.")
	receiptOut = receiptCmd.Flags().String("out", "receipt.pdf", "Output file.")
	rootCmd.AddCommand(receiptCmd)
}

var receiptCmd = &cobra.Command{
	Use:   "receipt [--month <mm.yyyy>] [--peni] [--out <file>]",
	Short: "Downloads the receipt PDF of a billing period.",
	Run: func(cmd *cobra.Command, args []string) {
		c, account, closeClient := openClient(cmd.Context())
		defer closeClient()

		var year int
		var period time.Time
		if *receiptMonth != "" {
			t, err := time.Parse("01.2006", *receiptMonth)
			if err != nil {
				fatal("bad --month", err)
			}
			period = t
			year = t.Year()
		}

		accruals, err := c.YearAccruals(cmd.Context(), client.YearAccrualsRequest{
			Account: account,
			Year:    year,
		})
		if err != nil {
			fatal("failed to fetch accruals", err)
		}

		var accrual *client.Accrual
		for _, a := range accruals {
			if period.IsZero() || (a.Date.Year() == period.Year() && a.Date.Month() == period.Month()) {
				accrual = a
				break
			}
		}
		if accrual == nil {
			fatal("no receipt", fmt.Errorf("no accrual for the requested period"))
		}

		data, err := c.ReceiptPDF(cmd.Context(), accrual, *receiptPeni)
		if err != nil {
			fatal("failed to download receipt", err)
		}
		if len(data) == 0 {
			fatal("no receipt", fmt.Errorf("the period has no downloadable document"))
		}

		if err := os.WriteFile(*receiptOut, data, 0644); err != nil {
			fatal("failed to write file", err)
		}
		fmt.Println("wrote", *receiptOut)
	},
}
