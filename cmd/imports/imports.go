// Package imports handles the statement import command
package imports

import (
	"context"
	"fmt"
	"io"

	"fjacquet/statement-import/cmd/common"
	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/fileutils"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/session"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Selection modes.
const (
	SelectReliable = "reliable"
	SelectAll      = "all"
)

// Options controls a command-line import.
type Options struct {
	Path      string
	Dir       string
	Select    string
	AccountID string
	DryRun    bool
}

var opts Options

// Cmd represents the import command
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Import a statement into the ledger",
	Long: `Run a statement through detection, extraction and validation, then commit
the selected transactions to the ledger file. By default only reliable records are
selected; use --select all to import low-confidence records too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		o := opts
		o.Path = root.SharedFlags.Input
		if o.Dir == "" {
			_, err = Run(cmd.Context(), c.GetManager(), o, cmd.OutOrStdout(), c.GetLogger())
			return err
		}

		imported, failed, err := RunDir(cmd.Context(), c.GetManager(), o, cmd.OutOrStdout(), c.GetLogger())
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d statements failed to import", failed, imported+failed)
		}
		return nil
	},
}

func init() {
	Cmd.Flags().StringVarP(&opts.Dir, "dir", "d", "", "Import every statement in a directory instead of --input")
	Cmd.Flags().StringVar(&opts.Select, "select", SelectReliable, "Records to import: reliable or all")
	Cmd.Flags().StringVar(&opts.AccountID, "account", "", "Target account UUID")
	Cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Review the statement without committing")
}

// RunDir imports every statement under o.Dir. A failing file is reported and the
// remaining files are still imported.
func RunDir(ctx context.Context, m *session.Manager, o Options, w io.Writer, logger logging.Logger) (imported, failed int, err error) {
	logger = logging.OrDefault(logger)

	files, err := fileutils.ListFilesWithExtension(o.Dir, m.Options().Upload.AllowedExtensions...)
	if err != nil {
		return 0, 0, err
	}
	if len(files) == 0 {
		return 0, 0, fmt.Errorf("no statements found in %s", o.Dir)
	}

	for _, file := range files {
		fmt.Fprintf(w, "== %s\n", file)
		o.Path = file
		if _, err := Run(ctx, m, o, w, logger); err != nil {
			failed++
			fmt.Fprintf(w, "failed: %v\n\n", err)
			logger.WithError(err).Warn("Statement import failed",
				logging.Field{Key: logging.FieldFileName, Value: file})
			continue
		}
		imported++
	}
	return imported, failed, nil
}

// Run imports one statement file. A dry run stops after the review and cancels
// the session.
func Run(ctx context.Context, m *session.Manager, o Options, w io.Writer, logger logging.Logger) (*models.ImportSummary, error) {
	logger = logging.OrDefault(logger)

	if o.Select != SelectReliable && o.Select != SelectAll {
		return nil, fmt.Errorf("invalid --select %q: must be %s or %s", o.Select, SelectReliable, SelectAll)
	}
	var account *uuid.UUID
	if o.AccountID != "" {
		id, err := uuid.Parse(o.AccountID)
		if err != nil {
			return nil, fmt.Errorf("invalid --account %q: %w", o.AccountID, err)
		}
		account = &id
	}

	meta, content, err := common.LoadStatement(o.Path, m.Options().Upload.MaxFileSizeBytes)
	if err != nil {
		return nil, err
	}

	s := m.Create(meta, content)
	validated, err := m.ValidateFile(s.ID)
	if err != nil {
		return nil, err
	}
	if validated.Detection != nil {
		common.PrintDetection(w, *validated.Detection)
	}

	if _, err := m.Extract(ctx, s.ID); err != nil {
		return nil, err
	}
	review, err := m.Review(s.ID)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w)
	for _, item := range review.Items {
		common.PrintRecord(w, item.Index, item.Record, item.Classification)
	}
	if review.Session.InvalidCount > 0 {
		fmt.Fprintf(w, "%d extracted records were rejected by validation\n", review.Session.InvalidCount)
	}
	fmt.Fprintln(w)

	if o.DryRun {
		common.PrintSummary(w, review.Summary)
		if _, err := m.Cancel(s.ID); err != nil {
			logger.WithError(err).Warn("Failed to cancel dry-run session")
		}
		return &review.Summary, nil
	}

	selected := review.Preselected
	if o.Select == SelectAll {
		selected = make([]int, len(review.Items))
		for i := range review.Items {
			selected[i] = i
		}
	}
	if len(selected) == 0 {
		if _, err := m.Cancel(s.ID); err != nil {
			logger.WithError(err).Warn("Failed to cancel empty import")
		}
		return nil, fmt.Errorf("no transactions to import (try --select all)")
	}

	if _, err := m.Confirm(s.ID, selected, account); err != nil {
		return nil, err
	}
	result, err := m.Commit(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	common.PrintSummary(w, result)
	logger.Info("Statement imported",
		logging.Field{Key: logging.FieldSessionID, Value: s.ID.String()},
		logging.Field{Key: logging.FieldFileName, Value: meta.Name},
		logging.Field{Key: logging.FieldCount, Value: result.Selected})
	return &result, nil
}
