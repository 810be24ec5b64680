package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/csvreport-cli/internal/analysis"
	"github.com/KaramelBytes/csvreport-cli/internal/utils"
)

var (
	abOutDir      string
	abClean       bool
	abJobs        int
	abQuiet       bool
	abDelimiter   string
	abPreviewRows int
	abSheetName   string
)

// batchJob is one input and the outputs reserved for it.
type batchJob struct {
	input   string
	report  string
	cleaned string
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Write a report (and optionally a cleaned copy) for each of several files",
	Long: `Expands each argument as a glob and writes <name>.report.txt for every matched
file into --out-dir. With --clean a copy without incomplete rows is written as
<name>.cleaned<ext>. Files with the same base name get a __2, __3 suffix.
Failures are reported per file and do not stop the rest of the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := ensureConfig()
		out := cmd.OutOrStdout()

		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		opt, err := analysisOptions(cmd, c, parseFlags{abDelimiter, abPreviewRows, abSheetName})
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(abOutDir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		jobs := planBatch(files, abOutDir)

		var (
			mu     sync.Mutex
			failed []string
			done   int
		)
		report := func(format string, a ...any) {
			if !abQuiet {
				fmt.Fprintf(out, format, a...)
			}
		}

		var g errgroup.Group
		g.SetLimit(max(abJobs, 1))
		for _, job := range jobs {
			g.Go(func() error {
				removed, err := runBatchJob(job, opt, abClean)
				mu.Lock()
				defer mu.Unlock()
				done++
				if err != nil {
					failed = append(failed, job.input)
					fmt.Fprintf(out, "✗ [%d/%d] %s: %v\n", done, len(jobs), filepath.Base(job.input), err)
					return nil
				}
				report("✓ [%d/%d] %s → %s\n", done, len(jobs), filepath.Base(job.input), filepath.Base(job.report))
				if abClean {
					report("  %d rows with missing values removed → %s\n", removed, filepath.Base(job.cleaned))
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(failed) > 0 {
			sort.Strings(failed)
			return fmt.Errorf("%d of %d files failed: %s", len(failed), len(jobs), strings.Join(failed, ", "))
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths into a sorted, de-duplicated list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// planBatch assigns output names up front so they do not depend on which
// worker finishes first.
func planBatch(files []string, outDir string) []batchJob {
	assigned := map[string]bool{}
	jobs := make([]batchJob, 0, len(files))
	for _, f := range files {
		ext := filepath.Ext(f)
		base := strings.TrimSuffix(filepath.Base(f), ext)
		// An input may itself be named like a suffixed duplicate (x__2.csv).
		stem := base
		for n := 2; assigned[stem]; n++ {
			stem = fmt.Sprintf("%s__%d", base, n)
		}
		assigned[stem] = true
		jobs = append(jobs, batchJob{
			input:   f,
			report:  filepath.Join(outDir, stem+".report.txt"),
			cleaned: filepath.Join(outDir, stem+".cleaned"+ext),
		})
	}
	return jobs
}

func runBatchJob(job batchJob, opt analysis.Options, clean bool) (int, error) {
	gen := analysis.NewGenerator(job.input, opt)
	if err := gen.Load(); err != nil {
		return 0, err
	}
	if err := gen.Summarize(); err != nil {
		return 0, err
	}
	if err := gen.SaveReport(job.report); err != nil {
		return 0, err
	}
	if !clean {
		return 0, nil
	}
	res, err := gen.Clean()
	if err != nil {
		return 0, err
	}
	if err := analysis.SaveTable(job.cleaned, res.Table, opt.Table); err != nil {
		return 0, err
	}
	return res.Removed, nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "reports", "directory for the generated reports")
	analyzeBatchCmd.Flags().BoolVar(&abClean, "clean", false, "also write a copy of each file without incomplete rows")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 4, "number of files processed concurrently")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress for successful files")
	analyzeBatchCmd.Flags().StringVar(&abDelimiter, "delimiter", "", "field delimiter: ',' | ';' | '|' | 'tab' (default by extension)")
	analyzeBatchCmd.Flags().IntVar(&abPreviewRows, "preview-rows", 5, "number of head and tail rows in each report")
	analyzeBatchCmd.Flags().StringVar(&abSheetName, "sheet", "", "XLSX: sheet name to analyze (default first sheet)")
}
