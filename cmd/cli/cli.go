// Package cli holds the helpers shared by the genenft subcommands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamidy7424/GeneNFT-Z/internal/app"
	"github.com/adamidy7424/GeneNFT-Z/internal/buildinfo"
	"github.com/adamidy7424/GeneNFT-Z/internal/conf"
	"github.com/adamidy7424/GeneNFT-Z/internal/genetic"
)

// Build is set by main from the values injected at link time
var Build buildinfo.Info

// Open builds the runtime for a subcommand. Status lines go to the
// command's stderr so stdout only carries results.
func Open(cmd *cobra.Command, settings *conf.Settings) (*app.App, error) {
	return app.New(cmd.Context(), settings,
		app.WithRelease(Build.GetVersion()),
		app.WithStatusPrinter(app.NewStatusWriter(cmd.ErrOrStderr())))
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatValue renders a record value with its provenance
func FormatValue(v genetic.RecordValue) string {
	n, ok := v.Value()
	if !ok {
		return v.Provenance().String()
	}
	return strconv.FormatInt(n, 10) + " (" + v.Provenance().String() + ")"
}

// PrintRecords writes records as an aligned table
func PrintRecords(w io.Writer, list []genetic.Record, value func(genetic.Record) genetic.RecordValue) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKEY\tCREATED\tRESEARCH\tVERIFIED\tVALUE")
	for _, r := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\t%s\n",
			r.ID, r.Name, r.Key, r.CreatedTime().Format(time.DateTime),
			r.PublicScore, r.IsVerified, FormatValue(value(r)))
	}
	return tw.Flush()
}
