// ioxstore is a command line tool for the per-database object stores of an
// IOx server. It can read and write objects in a database's directory, list
// its catalog transactions, check a store for objects outside the database,
// and serve a database store over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/getsentry/raven-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndlib/ioxstore/ident"
	"github.com/ndlib/ioxstore/iox"
	"github.com/ndlib/ioxstore/store"
)

// app holds the state shared by the commands of one invocation.
type app struct {
	configFile string
	flags      Config // flag values. only the changed ones are used
	cfg        Config

	log      *zap.Logger
	store    store.Store
	serverID ident.ServerID
}

// newRootCommand builds the command line. Run it with app.execute, so the
// store is closed afterwards.
func newRootCommand() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "ioxstore",
		Short: "Per-database object store tool",
		Long: `ioxstore reads and writes the objects of one IOx database in an object store.

Every database keeps its files below <server id>/<database name>/ in the store.`,
		SilenceUsage:       true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	f := root.PersistentFlags()
	f.StringVarP(&a.configFile, "config", "c", "", "configuration file (TOML)")
	f.StringVarP(&a.flags.Location, "location", "l", "", `store location: "memory", a directory, "file:/dir", "s3://host/bucket/prefix" or "bolt:/file.db"`)
	f.StringVar(&a.flags.Prefix, "prefix", "", "directories inside the location to keep everything below")
	f.Uint32VarP(&a.flags.ServerID, "server-id", "s", 0, "id of the server owning the database")
	f.StringVarP(&a.flags.Database, "database", "d", "", "database name")
	f.StringVar(&a.flags.SentryDSN, "sentry-dsn", "", "report store failures to this Sentry DSN")
	f.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		a.pathsCommand(),
		a.putCommand(),
		a.getCommand(),
		a.lsCommand(),
		a.rmCommand(),
		a.transactionsCommand(),
		a.verifyCommand(),
		a.serveCommand(),
	)
	return root, a
}

// execute runs root and then releases what setup opened. This is not done
// in PersistentPostRunE since cobra skips that when the command fails.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err2 := a.teardown(); err == nil {
		err = err2
	}
	return err
}

// setup loads the configuration, and opens the logger and the store.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(a.configFile)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("location") {
		cfg.Location = a.flags.Location
	}
	if f.Changed("prefix") {
		cfg.Prefix = a.flags.Prefix
	}
	if f.Changed("server-id") {
		cfg.ServerID = a.flags.ServerID
	}
	if f.Changed("database") {
		cfg.Database = a.flags.Database
	}
	if f.Changed("sentry-dsn") {
		cfg.SentryDSN = a.flags.SentryDSN
	}
	if f.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if f.Lookup("port") != nil && f.Changed("port") {
		cfg.Port = a.flags.Port
	}
	if f.Lookup("max-puts") != nil && f.Changed("max-puts") {
		cfg.MaxConcurrentPuts = a.flags.MaxConcurrentPuts
	}
	a.cfg = cfg

	a.log, err = newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.SentryDSN != "" {
		if err := raven.SetDSN(cfg.SentryDSN); err != nil {
			return err
		}
	}
	a.serverID, err = ident.NewServerID(cfg.ServerID)
	if err != nil {
		return err
	}
	a.store, err = parselocation(cfg.Location, cfg.Prefix, a.log)
	return err
}

func (a *app) teardown() error {
	if a.log != nil {
		a.log.Sync()
	}
	c, ok := a.store.(io.Closer)
	a.store = nil
	if ok {
		return c.Close()
	}
	return nil
}

// database opens the configured database.
func (a *app) database() (*iox.ObjectStore, error) {
	name, err := ident.NewDatabaseName(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	return iox.New(a.store, a.serverID, name, iox.WithLogger(a.log)), nil
}

func main() {
	root, a := newRootCommand()
	err := a.execute(context.Background(), root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
