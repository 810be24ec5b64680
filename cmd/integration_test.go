package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/csvreport-cli/internal/analysis"
)

const sampleCSV = "a,b,c\n1,2,\n3,,6\n7,8,9\n,11,12\n"

// resetFlags restores defaults so state does not leak between invocations.
func resetFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		reset := func(fl *pflag.Flag) {
			_ = fl.Value.Set(fl.DefValue)
			fl.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd, analyzeCmd, analyzeBatchCmd, serveCmd, configCmd, configShowCmd, configSetCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points HOME at a temp dir and returns a scratch dir for files.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return t.TempDir()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestCLI_AnalyzeWithCleanFlag(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "data.csv")
	report := filepath.Join(dir, "report.txt")
	cleaned := filepath.Join(dir, "cleaned.csv")
	writeFile(t, input, sampleCSV)

	out, err := execute(t, "", "analyze", input, "-o", report, "--cleaned-output", cleaned, "--clean")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	for _, want := range []string{
		"✓ File loaded successfully.",
		"✓ Report saved as '" + report + "'.",
		"✓ Cleaned data: 3 rows with missing values removed.",
		"✓ Cleaned CSV saved as '" + cleaned + "'.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(y/n)") {
		t.Fatalf("--clean should skip the prompt")
	}
	rep := readFile(t, report)
	if !strings.HasPrefix(rep, "CSV File Analysis Report\n") || !strings.Contains(rep, "Shape (Rows, Columns): (4, 3)\n") {
		t.Fatalf("unexpected report:\n%s", rep)
	}
	if got := readFile(t, cleaned); got != "a,b,c\n7,8,9\n" {
		t.Fatalf("cleaned = %q", got)
	}
}

func TestCLI_AnalyzeInteractive(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "data.csv")
	report := filepath.Join(dir, "report.txt")
	cleaned := filepath.Join(dir, "cleaned.csv")
	writeFile(t, input, sampleCSV)

	out, err := execute(t, input+"\ny\n", "analyze", "-o", report, "--cleaned-output", cleaned)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.HasPrefix(out, "Enter the path to your CSV file: ") {
		t.Fatalf("missing path prompt:\n%s", out)
	}
	if !strings.Contains(out, "Do you want to clean and save the CSV (drop missing rows)? (y/n): ") {
		t.Fatalf("missing clean prompt:\n%s", out)
	}
	if _, err := os.Stat(cleaned); err != nil {
		t.Fatalf("cleaned file not written: %v", err)
	}
}

func TestCLI_AnalyzeDeclineClean(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "data.csv")
	cleaned := filepath.Join(dir, "cleaned.csv")
	writeFile(t, input, sampleCSV)

	out, err := execute(t, "n\n", "analyze", input, "-o", filepath.Join(dir, "r.txt"), "--cleaned-output", cleaned)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(out, "Cleaned CSV not saved.") {
		t.Fatalf("expected decline message:\n%s", out)
	}
	if _, err := os.Stat(cleaned); !os.IsNotExist(err) {
		t.Fatalf("cleaned file should not exist, stat err = %v", err)
	}

	// End of input counts as "no".
	out, err = execute(t, "", "analyze", input, "-o", filepath.Join(dir, "r.txt"), "--cleaned-output", cleaned)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(out, "Cleaned CSV not saved.") {
		t.Fatalf("expected decline message on EOF:\n%s", out)
	}
}

func TestCLI_AnalyzePrintAndPreviewRows(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "data.csv")
	writeFile(t, input, sampleCSV)

	out, err := execute(t, "", "analyze", input, "-o", filepath.Join(dir, "r.txt"), "--clean=false", "--print", "--preview-rows", "2")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(out, "Top 2 Rows:") || !strings.Contains(out, "Bottom 2 Rows:") {
		t.Fatalf("report not printed with 2 preview rows:\n%s", out)
	}
}

func TestCLI_AnalyzeMissingFile(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "", "analyze", filepath.Join(dir, "nope.csv"), "--clean=false")
	if !errors.Is(err, analysis.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCLI_AnalyzeParseError(t *testing.T) {
	dir := isolate(t)
	input := filepath.Join(dir, "bad.csv")
	writeFile(t, input, "a,b\n1,2,3\n")
	_, err := execute(t, "", "analyze", input, "--clean=false")
	var pe *analysis.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ParseError", err)
	}
}

func TestCLI_ConfigSetShowAndDelimiter(t *testing.T) {
	dir := isolate(t)

	if _, err := execute(t, "", "config", "set", "delimiter", ";"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := execute(t, "", "config", "set", "preview_rows", "3"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	out, err := execute(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, `delimiter: ";"`) || !strings.Contains(out, "preview_rows: 3") {
		t.Fatalf("config show output:\n%s", out)
	}

	input := filepath.Join(dir, "semi.csv")
	report := filepath.Join(dir, "r.txt")
	writeFile(t, input, "x;y\n1;2\n3;4\n")
	if _, err := execute(t, "", "analyze", input, "-o", report, "--clean=false"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	rep := readFile(t, report)
	if !strings.Contains(rep, "Shape (Rows, Columns): (2, 2)") || !strings.Contains(rep, "Top 3 Rows:") {
		t.Fatalf("config not applied:\n%s", rep)
	}
}

func TestCLI_ConfigSetRejectsInvalid(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "", "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := execute(t, "", "config", "set", "log_format", "xml"); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := execute(t, "", "config", "set", "preview_rows", "many"); err == nil {
		t.Fatalf("expected int parse error")
	}
}

func TestServeLifecycle(t *testing.T) {
	isolate(t)
	c := defaultConfig()
	c.UploadDir = t.TempDir()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, c) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}

func TestJanitorInterval(t *testing.T) {
	if got := janitorInterval(0); got != time.Second {
		t.Fatalf("interval(0) = %v", got)
	}
	if got := janitorInterval(2 * time.Minute); got != 30*time.Second {
		t.Fatalf("interval(2m) = %v", got)
	}
	if got := janitorInterval(time.Hour); got != time.Minute {
		t.Fatalf("interval(1h) = %v", got)
	}
}
