package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratum-ui/stratum/internal/config"
	"github.com/stratum-ui/stratum/internal/errors"
	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/protocol"
)

func replayCmd() *cobra.Command {
	var (
		configPath  string
		journalPath string
		scenePath   string
		after       uint64
		dump        bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-apply a transaction journal and verify it",
		Long: `Replay rebuilds a view hierarchy by applying every journaled
transaction, in revision order, to a stub mount stage seeded with the
scene's initial tree.

The scene must be the one the journal was recorded from; its initial
generation is revision 1, which is never journaled. Replay fails on the
first transaction that does not apply cleanly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if journalPath != "" {
				cfg.Journal.Backend = config.JournalBolt
				cfg.Journal.Path = journalPath
			}
			if cfg.Journal.Backend == config.JournalNone {
				return errors.New("E123").
					WithDetail("No journal configured").
					WithSuggestion("Pass --journal or configure a journal backend in stratum.json")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sc, err := loadScene(scenePath)
			if err != nil {
				return err
			}
			tree, err := sc.Build()
			if err != nil {
				return err
			}
			root, _ := tree.Root()
			stub := mount.StubTreeOf(root)

			jnl, err := openJournal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer jnl.Close()

			var (
				transactions int
				mutations    int
				lastRevision uint64
			)
			err = jnl.Replay(cmd.Context(), after, func(revision uint64, payload []byte) error {
				tx, err := protocol.DecodeTransaction(payload)
				if err != nil {
					return errors.New("E122").
						WithDetail(fmt.Sprintf("Transaction %d could not be decoded", revision)).
						Wrap(err)
				}
				if tx.Revision != revision {
					return errors.New("E122").
						WithDetail(fmt.Sprintf("Journal key %d carries transaction revision %d", revision, tx.Revision))
				}
				if err := stub.Apply(tx.Mutations...); err != nil {
					return errors.New("E161").
						WithDetail(fmt.Sprintf("Transaction %d does not apply cleanly", revision)).
						Wrap(err)
				}
				transactions++
				mutations += len(tx.Mutations)
				lastRevision = revision
				return nil
			})
			if err != nil {
				return err
			}

			if transactions == 0 {
				warn("journal is empty after revision %d", after)
				return nil
			}

			success("replayed %d transactions (%d mutations) up to revision %d",
				transactions, mutations, lastRevision)
			if dump {
				fmt.Print(stub.Dump())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to stratum.json")
	cmd.Flags().StringVar(&journalPath, "journal", "", "Bolt journal file (overrides config)")
	cmd.Flags().StringVar(&scenePath, "scene", "", "Scene the journal was recorded from (default: built-in demo)")
	cmd.Flags().Uint64Var(&after, "after", 0, "Replay only revisions greater than this")
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the final hierarchy")

	return cmd
}
