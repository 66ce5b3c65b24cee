package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"erkc63/lib/client"
	"erkc63/lib/configutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	BaseUrl  string `json:"base_url"`
	Login    string `json:"login"`
	Password string `json:"password"`
	// Account overrides the primary account for every command.
	Account int64 `json:"account"`
}

var configPath *string
var accountFlag *int64

var rootCmd = &cobra.Command{
	Use:   "erkc63",
	Short: "erkc63 is a CLI for the lk.erkc63.ru personal cabinet.",
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "erkc63.json5", "Path to the credentials config.")
	accountFlag = rootCmd.PersistentFlags().Int64("account", 0, "Account to operate on, defaults to the config or the primary one.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// openClient builds a client from the config and logs it in. The
// returned cleanup closes the session.
func openClient(ctx context.Context) (*client.Client, int64, func()) {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		fatal("failed to read config", err)
	}

	c, err := client.NewClient(client.ClientOptions{
		BaseUrl:  cfg.BaseUrl,
		Login:    cfg.Login,
		Password: cfg.Password,
	})
	if err != nil {
		fatal("failed to initialize client", err)
	}
	if err := c.Open(ctx); err != nil {
		fatal("failed to open session", err)
	}

	account := cfg.Account
	if *accountFlag != 0 {
		account = *accountFlag
	}
	return c, account, func() {
		if err := c.Close(context.Background(), true); err != nil {
			slog.Warn("failed to close session", "err", err)
		}
	}
}

// anonClient builds a client for the public endpoints, no credentials
// needed.
func anonClient() (*client.Client, func()) {
	c, err := client.NewClient(client.ClientOptions{})
	if err != nil {
		fatal("failed to initialize client", err)
	}
	return c, func() {
		if err := c.Close(context.Background(), true); err != nil {
			slog.Warn("failed to close session", "err", err)
		}
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
