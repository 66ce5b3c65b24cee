package commands

import (
	"fmt"
	"strconv"
	"strings"

	"erkc63/lib/client"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	metersCmd.AddCommand(metersHistoryCmd)
	metersCmd.AddCommand(metersSubmitCmd)
	rootCmd.AddCommand(metersCmd)
}

var metersCmd = &cobra.Command{
	Use:   "meters",
	Short: "Prints the metering devices and their last readings.",
	Run: func(cmd *cobra.Command, args []string) {
		c, account, closeClient := openClient(cmd.Context())
		defer closeClient()

		meters, err := c.MetersInfo(cmd.Context(), account)
		if err != nil {
			fatal("failed to fetch meters", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Serial", "Date", "Value"})
		for _, m := range meters {
			t.AppendRow(table.Row{m.ID, m.Serial, m.Date.Format("02.01.2006"), m.Value})
		}
		t.Render()
	},
}

var metersHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Prints the full reading history of every device.",
	Run: func(cmd *cobra.Command, args []string) {
		c, account, closeClient := openClient(cmd.Context())
		defer closeClient()

		history, err := c.MetersHistory(cmd.Context(), client.MetersHistoryRequest{
			Account: account,
		})
		if err != nil {
			fatal("failed to fetch meters history", err)
		}

		for _, device := range history {
			t := newTable()
			t.SetTitle(fmt.Sprintf("%s №%s", device.Name, device.Serial))
			t.AppendHeader(table.Row{"Date", "Value", "Consumption", "Source"})
			for _, v := range device.Values {
				t.AppendRow(table.Row{v.Date.Format("02.01.2006"), v.Value, v.Consumption, v.Source})
			}
			t.Render()
		}
	},
}

var metersSubmitCmd = &cobra.Command{
	Use:   "submit <id>=<value>...",
	Short: "Submits new readings, keyed by the device id from 'meters'.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		values := make(map[int64]float64, len(args))
		for _, arg := range args {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				fatal("bad reading", fmt.Errorf("expected <id>=<value>, got %q", arg))
			}
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				fatal("bad device id", err)
			}
			value, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fatal("bad reading value", err)
			}
			values[id] = value
		}

		c, account, closeClient := openClient(cmd.Context())
		defer closeClient()

		if err := c.SetMetersValues(cmd.Context(), account, values); err != nil {
			fatal("failed to submit readings", err)
		}
		fmt.Println("submitted", len(values), "readings")
	},
}
