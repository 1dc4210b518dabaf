package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/capability"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
)

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Export a capability key for every listed entry",
		Long: `Write a CSV of id, name, name_eng and token for every visible entry.
Tokens are sealed with capability.secret from the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.cfg.Capability.Secret == "" {
				return fmt.Errorf("capability.secret is not configured")
			}
			codec, err := capability.NewCodec([]byte(rootOpts.cfg.Capability.Secret))
			if err != nil {
				return err
			}
			st, err := rootOpts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			return exportKeys(cmd.OutOrStdout(), st, codec)
		},
	}
}

// Lister returns the visible entries.
type Lister interface {
	Filter(q indexer.Query) []entry.Entry
}

func exportKeys(w io.Writer, st Lister, codec *capability.Codec) error {
	out := csv.NewWriter(w)
	for _, en := range st.Filter(indexer.Query{Order: entry.ByName}) {
		token, err := codec.Generate(en.ID)
		if err != nil {
			return fmt.Errorf("generating key for %d: %w", en.ID, err)
		}
		if err := out.Write([]string{strconv.Itoa(int(en.ID)), en.Name, en.NameEng, token}); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
