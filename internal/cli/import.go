package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	File string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Append entries from a CSV file",
		Long: `Append entries from a CSV file with a header row naming the columns
name, name_eng, category, tags, desc, desc_eng, creation and disbandment.
Tags are space separated. An empty disbandment means the club is active.
Each row receives the next free id.

Example:
  directoryctl import --file clubs.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "-", "CSV file to read, - for stdin")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, cmd *cobra.Command) error {
	in := cmd.InOrStdin()
	if opts.File != "-" {
		f, err := os.Open(opts.File)
		if err != nil {
			return fmt.Errorf("opening %s: %w", opts.File, err)
		}
		defer f.Close()
		in = f
	}

	st, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	n, importErr := importEntries(ctx, st, in)
	if err := st.Close(); err != nil && importErr == nil {
		importErr = err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", n)
	return importErr
}

// Importer is the part of the store that import writes through.
type Importer interface {
	HighestID() int32
	Put(ctx context.Context, en entry.Entry) error
}

var importColumns = []string{"name", "name_eng", "category", "tags", "desc", "desc_eng", "creation", "disbandment"}

// importEntries appends every row of r and returns how many were stored.
// It stops at the first malformed row or failed write.
func importEntries(ctx context.Context, st Importer, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range []string{"name", "name_eng"} {
		if _, ok := cols[name]; !ok {
			return 0, fmt.Errorf("missing required column %q", name)
		}
	}

	next := st.HighestID()
	imported := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return imported, nil
		}
		if err != nil {
			return imported, fmt.Errorf("reading row %d: %w", imported+2, err)
		}
		raw := decodeRow(cols, record)
		next++
		en := raw.Extend(next)
		if err := st.Put(ctx, en); err != nil {
			return imported, fmt.Errorf("inserting %q as %d: %w", raw.Name, en.ID, err)
		}
		slog.Debug("entry imported", "id", en.ID, "name", en.Name)
		imported++
	}
}

func decodeRow(cols map[string]int, record []string) entry.RawEntry {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	raw := entry.RawEntry{
		Name:     field("name"),
		NameEng:  field("name_eng"),
		Category: field("category"),
		Tags:     field("tags"),
		Desc:     field("desc"),
		DescEng:  field("desc_eng"),
		Creation: field("creation"),
	}
	if d := strings.TrimSpace(field("disbandment")); d != "" {
		raw.Disbandment = &d
	}
	return raw
}
