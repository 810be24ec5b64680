package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/csvreport-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set csvreport configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := ensureConfig()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "report_path: %s\n", c.ReportPath)
		fmt.Fprintf(out, "cleaned_path: %s\n", c.CleanedPath)
		if c.Delimiter != "" {
			fmt.Fprintf(out, "delimiter: %q\n", c.Delimiter)
		}
		fmt.Fprintf(out, "preview_rows: %d\n", c.PreviewRows)
		if len(c.NAValues) > 0 {
			fmt.Fprintf(out, "na_values: %s\n", strings.Join(c.NAValues, ","))
		}
		if c.SheetName != "" {
			fmt.Fprintf(out, "sheet_name: %s\n", c.SheetName)
		}
		fmt.Fprintf(out, "listen_addr: %s\n", c.ListenAddr)
		fmt.Fprintf(out, "upload_dir: %s\n", c.UploadDir)
		fmt.Fprintf(out, "max_upload_mb: %d\n", c.MaxUploadMB)
		fmt.Fprintf(out, "session_ttl_min: %d\n", c.SessionTTLMin)
		fmt.Fprintf(out, "upload_rps: %.2f\n", c.UploadRPS)
		fmt.Fprintf(out, "upload_burst: %d\n", c.UploadBurst)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c := ensureConfig()
		next := *c
		if err := setKey(&next, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		*c = next
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "report_path":
		c.ReportPath = val
	case "cleaned_path":
		c.CleanedPath = val
	case "delimiter":
		if _, err := cfgpkg.ParseDelimiter(val); err != nil {
			return err
		}
		c.Delimiter = val
	case "preview_rows":
		c.PreviewRows, err = atoi()
	case "na_values":
		c.NAValues = nil
		for _, v := range strings.Split(val, ",") {
			if v = strings.TrimSpace(v); v != "" {
				c.NAValues = append(c.NAValues, v)
			}
		}
	case "sheet_name":
		c.SheetName = val
	case "listen_addr":
		c.ListenAddr = val
	case "upload_dir":
		c.UploadDir = val
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "session_ttl_min":
		c.SessionTTLMin, err = atoi()
	case "upload_rps":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return fmt.Errorf("invalid float for upload_rps: %v", val)
		}
		c.UploadRPS = f
	case "upload_burst":
		c.UploadBurst, err = atoi()
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return err
	}
	return c.Validate()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
