package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/ofx"
	"fintrack/internal/services"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import statement lines from OFX or QFX files exported by your bank.

Debits become expenses, credits become income and transfers stay transfers.
Amounts are stored as positive values. Lines whose FITID was already seen in
this run are skipped.`,
		Example: `  # Import one statement into an account
  fintrack import-ofx --account 5b0c2f8e-6f6e-4a55-9a1e-0c5d1a9c7f10 ~/Downloads/march.qfx

  # Preview every QFX file in a directory
  fintrack import-ofx --account <id> --dry-run ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("account", "", "account id to book the lines on (required)")
	cmd.Flags().String("category", "", "category id to assign to every line")
	cmd.Flags().BoolP("dry-run", "d", false, "parse and validate without saving")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	opts := ofx.ImportOptions{DryRun: dryRun}
	accountFlag, _ := cmd.Flags().GetString("account")
	accountID, err := uuid.Parse(accountFlag)
	if err != nil {
		return fmt.Errorf("invalid --account %q: %w", accountFlag, err)
	}
	opts.AccountID = accountID
	if categoryFlag, _ := cmd.Flags().GetString("category"); categoryFlag != "" {
		categoryID, err := uuid.Parse(categoryFlag)
		if err != nil {
			return fmt.Errorf("invalid --category %q: %w", categoryFlag, err)
		}
		opts.CategoryID = &categoryID
	}

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	res, err := openBackend(ctx, !dryRun)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer cleanup(res)

	collector := metrics.New()
	ledger := services.NewLedgerService(res.Store, res.Publisher, collector)
	if _, err := ledger.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("account %s does not exist", accountID)
		}
		return err
	}

	parser := ofx.NewParser(logger)
	var entries []ofx.Entry
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			logger.Error("Failed to open file", "file", path, log.FieldError, err)
			continue
		}
		parsed, err := parser.Parse(ctx, f)
		f.Close()
		if err != nil {
			logger.Error("Failed to parse OFX file", "file", path, log.FieldError, err)
			continue
		}
		logger.Info("Read statement", "file", filepath.Base(path), "entries", len(parsed))
		entries = append(entries, parsed...)
	}
	if len(entries) == 0 {
		return errors.New("no transactions found to import")
	}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())

	result, err := ofx.NewImporter(ledger, logger, collector).Import(ctx, entries, opts, func() { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return err
	}

	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	cmd.Printf("%s %d transactions (%d duplicates skipped, %d rejected)\n",
		verb, result.Imported, result.Duplicates, result.Rejected)
	return nil
}

// expandFiles resolves glob patterns; a pattern matching nothing is kept
// when it names an existing file.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			logger.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no files found to import")
	}
	return files, nil
}
