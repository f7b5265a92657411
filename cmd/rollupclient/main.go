// Command rollupclient is the CLI entry point over the client facade:
// new-transaction/submit/sync/import-note/import-account/tag/query
// subcommands, wired the way the teacher's cmd/synnergy builds a root
// command from per-area factory functions, with the cmd/cli wallet's
// PersistentPreRunE + sync.Once env/logging bootstrap.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rollupclient/authenticator"
	"rollupclient/client"
	"rollupclient/config"
	"rollupclient/rpc/mockchain"
	"rollupclient/screener"
	"rollupclient/store/memstore"
	"rollupclient/txexec"
	"rollupclient/txpipeline"
)

var (
	logger = logrus.StandardLogger()
	once   sync.Once

	cfg    config.Config
	rollup *client.Client
)

// initMiddleware is the root command's PersistentPreRunE: it loads .env and
// the layered config exactly once per process, then constructs the client
// facade every subcommand shares. The backing store and node connection are
// in-memory (store/memstore, rpc/mockchain): a real persistent store and a
// gRPC-backed rpc.Client are wiring points this facade accepts but that this
// CLI, run standalone, has no live node to dial.
func initMiddleware(cmd *cobra.Command, _ []string) error {
	var err error
	once.Do(func() {
		_ = godotenv.Load()

		var c *config.Config
		c, err = config.LoadFromEnv()
		if err != nil {
			return
		}
		cfg = *c

		lvl, lerr := logrus.ParseLevel(cfg.LogLevel)
		if lerr != nil {
			lvl = logrus.InfoLevel
		}
		logger.SetLevel(lvl)

		seed := []byte(config.EnvOrDefault("ROLLUPCLIENT_WALLET_SEED", "0123456789abcdef0123456789abcdef"))
		wallet, werr := authenticator.NewHDWalletFromSeed(seed)
		if werr != nil {
			err = fmt.Errorf("rollupclient: init wallet: %w", werr)
			return
		}

		backing := memstore.New()
		chain := mockchain.New()
		exec := &txexec.FakeExecutor{}
		scr := screener.New(exec)

		rollup = client.New(backing, chain, scr, exec, wallet, txpipeline.LocalProver{}, client.Config{
			GracefulBlocks:      cfg.GracefulBlocks,
			MaxBlockNumberDelta: cfg.MaxBlockNumberDelta,
			DebugMode:           cfg.Debug,
		}, logger)
	})
	return err
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "rollupclient",
		Short:             "State-sync client for a zero-knowledge rollup",
		PersistentPreRunE: initMiddleware,
	}
	root.AddCommand(syncCmd())
	root.AddCommand(txCmd())
	root.AddCommand(noteCmd())
	root.AddCommand(accountCmd())
	root.AddCommand(queryCmd())
	return root
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rollupclient:", err)
		os.Exit(1)
	}
}
