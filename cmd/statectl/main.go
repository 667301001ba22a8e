// Command statectl connects to a provisioning ledger store, seeds the
// built-in state machines and answers current-state and history queries
// from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"provisioncore/internal/ledger"
	"provisioncore/internal/store"
	"provisioncore/pkg/fsm"
)

// burstController is the component actor seeded for the provisioning worker.
const burstController = "burst.controller"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		backend string
		path    string
	)
	root := &cobra.Command{
		Use:           "statectl",
		Short:         "Inspect and seed the provisioning ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&backend, "backend", string(store.SQLite), "store backend (sqlite or postgres)")
	root.PersistentFlags().StringVar(&path, "path", "provisioncore.db", "database path or DSN")

	open := func(ctx context.Context) (*store.Registry, *store.Session, error) {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, nil, err
		}
		registry := store.NewRegistry(fsm.Builtin(), logger,
			store.WithSystemComponents(burstController))
		sess, err := registry.Connect(ctx, store.Backend(backend), path)
		if err != nil {
			return nil, nil, err
		}
		return registry, sess, nil
	}

	root.AddCommand(
		newSeedCmd(open),
		newCurrentCmd(open),
		newHistoryCmd(open),
	)
	return root
}

type opener func(ctx context.Context) (*store.Registry, *store.Session, error)

func newSeedCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Ensure state rows exist for every built-in machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, sess, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()
			// The first connect seeds implicitly; rerunning reports
			// how much a changed catalogue added.
			created, err := store.Seed(ctx, sess, fsm.Builtin())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d state rows created\n", created)
			return nil
		},
	}
}

func newCurrentCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "current <artifact-uuid>",
		Short: "Print the current state of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, sess, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()
			led := ledger.New(sess)
			artifact, err := led.ArtifactByUUID(ctx, args[0])
			if err != nil {
				return err
			}
			state, err := led.CurrentState(ctx, artifact)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s/%s\n", artifact.UUID, state.Machine, state.Name)
			return nil
		},
	}
}

func newHistoryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history <artifact-uuid>",
		Short: "Print the full state history of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, sess, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()
			led := ledger.New(sess)
			artifact, err := led.ArtifactByUUID(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := led.History(ctx, artifact, ledger.Ascending)
			if err != nil {
				return err
			}
			for _, rec := range records {
				actor := rec.Actor.UUID
				if rec.Actor.Handle != nil {
					actor = *rec.Actor.Handle
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s/%s  by %s\n",
					rec.At.Format("2006-01-02T15:04:05.000Z07:00"),
					rec.State.Machine, rec.State.Name, actor)
			}
			return nil
		},
	}
}
