package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ndlib/ioxstore/iox"
	"github.com/ndlib/ioxstore/server"
)

// relative turns a slash separated argument into a RelativePath.
func relative(arg string) iox.RelativePath {
	arg = strings.Trim(arg, "/")
	if arg == "" {
		return iox.RelativePath{}
	}
	return iox.NewRelativePath(strings.Split(arg, "/")...)
}

func (a *app) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the directories of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.database()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "root", o.RootPath().Path())
			fmt.Fprintln(w, "data", o.DataPath())
			fmt.Fprintln(w, "catalog", o.CatalogPath())
			return nil
		},
	}
}

func (a *app) putCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "put <path> [file]",
		Short: "Store a file, or standard input, at a path in the database",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.database()
			if err != nil {
				return err
			}
			location := relative(args[0])
			if location.IsEmpty() {
				return iox.ErrEmptyPath
			}
			var r io.Reader = cmd.InOrStdin()
			var length int64 = -1
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				stat, err := f.Stat()
				if err != nil {
					return err
				}
				r, length = f, stat.Size()
			}
			return o.Put(cmd.Context(), location, r, length)
		},
	}
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Copy the object at a path in the database to standard output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.database()
			if err != nil {
				return err
			}
			rc, err := o.Get(cmd.Context(), relative(args[0]))
			if err != nil {
				return err
			}
			defer rc.Close()
			_, err = io.Copy(cmd.OutOrStdout(), rc)
			return err
		},
	}
}

func (a *app) lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List the objects in the database, or below a prefix in it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.database()
			if err != nil {
				return err
			}
			var prefix iox.RelativePath
			if len(args) > 0 {
				prefix = relative(args[0])
			}
			ctx := cmd.Context()
			l, err := o.List(ctx, prefix)
			if err != nil {
				return err
			}
			defer l.Close()
			w := cmd.OutOrStdout()
			for {
				batch, err := l.Next(ctx)
				if err == io.EOF {
					return nil
				} else if err != nil {
					return err
				}
				for _, r := range batch {
					fmt.Fprintln(w, r)
				}
			}
		},
	}
}

func (a *app) rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>...",
		Short: "Delete objects from the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.database()
			if err != nil {
				return err
			}
			for _, arg := range args {
				if err := o.Delete(cmd.Context(), relative(arg)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) transactionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transactions",
		Short: "List the catalog transaction files of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.database()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			l, err := o.CatalogTransactions(ctx)
			if err != nil {
				return err
			}
			defer l.Close()
			w := cmd.OutOrStdout()
			for {
				batch, err := l.Next(ctx)
				if err == io.EOF {
					return nil
				} else if err != nil {
					return err
				}
				for _, t := range batch {
					info, err := t.Parse()
					if err != nil {
						fmt.Fprintf(w, "%s\t(%v)\n", t, err)
						continue
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", info.Revision, info.Kind, info.UUID)
				}
			}
		},
	}
}

// verifyCommand lists everything below the database root in the
// underlying store, and counts what it finds. It fails if the store gives
// back anything outside the root.
func (a *app) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every object the store lists for the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.database()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			root := o.RootPath()
			l, err := a.store.List(ctx, root.Path())
			if err != nil {
				return err
			}
			defer l.Close()
			var objects, transactions, badTransactions, outside int
			for {
				batch, err := l.Next(ctx)
				if err == io.EOF {
					break
				} else if err != nil {
					return err
				}
				for _, p := range batch {
					r, err := root.Relative(p)
					if err != nil {
						a.log.Error("outside database", zap.Error(err))
						outside++
						continue
					}
					objects++
					if len(r.Parts()) > 0 && r.Parts()[0] == "transactions" {
						if _, err := iox.ParseTransactionPath(r); err != nil {
							a.log.Warn("bad transaction name", zap.Stringer("path", r), zap.Error(err))
							badTransactions++
						} else {
							transactions++
						}
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects\n%d transactions\n%d bad transaction names\n%d outside the database\n",
				objects, transactions, badTransactions, outside)
			if outside > 0 {
				return errors.Errorf("store listed %d objects outside %s", outside, root.Path())
			}
			return nil
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the object stores of every database of the server over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &server.RESTServer{
				PortNumber:        a.cfg.Port,
				ServerID:          a.serverID,
				Store:             a.store,
				Log:               a.log,
				MaxConcurrentPuts: a.cfg.MaxConcurrentPuts,
			}
			go func() {
				sig := make(chan os.Signal, 1)
				signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
				<-sig
				a.log.Info("stopping")
				s.Stop()
			}()
			return s.Run()
		},
	}
	cmd.Flags().StringVarP(&a.flags.Port, "port", "p", "", "port to listen on")
	cmd.Flags().IntVar(&a.flags.MaxConcurrentPuts, "max-puts", 0, "number of uploads allowed at one time")
	return cmd
}
