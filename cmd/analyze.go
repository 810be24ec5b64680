package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/csvreport-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/csvreport-cli/internal/config"
)

var (
	anaOutputPath  string
	anaCleanedPath string
	anaClean       bool
	anaPrint       bool
	anaDelimiter   string
	anaPreviewRows int
	anaSheetName   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Write a summary report for a CSV/TSV/XLSX file and optionally drop incomplete rows",
	Long: `Loads the file, writes a text report (shape, column types, head and tail rows,
summary statistics, unique and missing value counts) and then asks whether to
save a copy without the rows that have missing values. When no file is given
the path is read from standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := ensureConfig()
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			p, err := prompt(in, out, "Enter the path to your CSV file: ")
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			path = p
		}
		path = strings.TrimSpace(path)
		if path == "" {
			return errors.New("no input file given")
		}

		opt, err := analysisOptions(cmd, c, parseFlags{anaDelimiter, anaPreviewRows, anaSheetName})
		if err != nil {
			return err
		}
		gen := analysis.NewGenerator(path, opt)
		if err := gen.Load(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ File loaded successfully.")

		if err := gen.Summarize(); err != nil {
			return err
		}
		reportPath := c.ReportPath
		if cmd.Flags().Changed("output") {
			reportPath = anaOutputPath
		}
		if err := gen.SaveReport(reportPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Report saved as '%s'.\n", reportPath)
		if anaPrint {
			fmt.Fprintln(out)
			if err := gen.WriteReport(out); err != nil {
				return err
			}
		}

		doClean := anaClean
		if !cmd.Flags().Changed("clean") {
			answer, err := prompt(in, out, "Do you want to clean and save the CSV (drop missing rows)? (y/n): ")
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			answer = strings.ToLower(strings.TrimSpace(answer))
			doClean = answer == "y" || answer == "yes"
		}
		if !doClean {
			fmt.Fprintln(out, "Cleaned CSV not saved.")
			return nil
		}

		res, err := gen.Clean()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Cleaned data: %d rows with missing values removed.\n", res.Removed)
		cleanedPath := c.CleanedPath
		if cmd.Flags().Changed("cleaned-output") {
			cleanedPath = anaCleanedPath
		}
		if err := analysis.SaveTable(cleanedPath, res.Table, opt.Table); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Cleaned CSV saved as '%s'.\n", cleanedPath)
		logger.Debug("analyze finished",
			"input", path,
			"report", reportPath,
			"cleaned", cleanedPath,
			"rows_removed", res.Removed,
		)
		return nil
	},
}

// parseFlags holds the parsing flags shared by analyze and analyze-batch.
type parseFlags struct {
	delimiter   string
	previewRows int
	sheet       string
}

// analysisOptions merges config values with the flags set on cmd.
func analysisOptions(cmd *cobra.Command, c *cfgpkg.Global, pf parseFlags) (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	opt.Logger = logger
	opt.Table = c.TableOptions()
	opt.PreviewRows = c.PreviewRows
	f := cmd.Flags()
	if f.Changed("delimiter") {
		d, err := cfgpkg.ParseDelimiter(pf.delimiter)
		if err != nil {
			return opt, fmt.Errorf("unsupported --delimiter: %w", err)
		}
		opt.Table.Delimiter = d
	}
	if f.Changed("preview-rows") {
		if pf.previewRows <= 0 {
			return opt, fmt.Errorf("--preview-rows must be positive, got %d", pf.previewRows)
		}
		opt.PreviewRows = pf.previewRows
	}
	if f.Changed("sheet") {
		opt.Table.Sheet = pf.sheet
	}
	return opt, nil
}

// prompt writes label and reads one line. A final line without a trailing
// newline is accepted; io.EOF is returned only when nothing was read.
func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "report path (default from config: csv_analysis_report.txt)")
	analyzeCmd.Flags().StringVar(&anaCleanedPath, "cleaned-output", "", "cleaned file path (default from config: cleaned_output.csv)")
	analyzeCmd.Flags().BoolVar(&anaClean, "clean", false, "drop rows with missing values and save (--clean=false skips the prompt)")
	analyzeCmd.Flags().BoolVar(&anaPrint, "print", false, "also print the report to stdout")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "field delimiter: ',' | ';' | '|' | 'tab' (default by extension)")
	analyzeCmd.Flags().IntVar(&anaPreviewRows, "preview-rows", 5, "number of head and tail rows in the report")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet", "", "XLSX: sheet name to analyze (default first sheet)")
}
