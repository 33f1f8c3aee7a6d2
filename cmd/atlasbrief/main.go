package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/atlasbrief/atlasbrief/internal/config"
	"github.com/atlasbrief/atlasbrief/internal/gateway"
	"github.com/atlasbrief/atlasbrief/internal/history"
)

var rootCmd = &cobra.Command{
	Use:   "atlasbrief",
	Short: "atlasbrief - world events assistant with daily reports",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (channels + day-end scheduler + metrics)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show atlasbrief status",
	RunE:  runStatus,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render one day's report to a PDF file",
	RunE:  runReport,
}

var (
	reportDateFlag string
	reportOutFlag  string
)

func init() {
	reportCmd.Flags().StringVarP(&reportDateFlag, "date", "d", "", "Logical day to render (YYYY-MM-DD)")
	reportCmd.Flags().StringVarP(&reportOutFlag, "out", "o", "", "Output file (default report-<date>.pdf)")
	_ = reportCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(gatewayCmd, onboardCmd, statusCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w (run 'atlasbrief onboard' to create one)", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	pdf, err := gw.RenderDay(context.Background(), reportDateFlag)
	if err != nil {
		return err
	}

	out := reportOutFlag
	if out == "" {
		out = fmt.Sprintf("report-%s.pdf", reportDateFlag)
	}
	if err := os.WriteFile(out, pdf, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", out, len(pdf))
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and Telegram token\n", cfgPath)
	fmt.Println("  2. Or set ATLASBRIEF_API_KEY and ATLASBRIEF_TELEGRAM_TOKEN")
	fmt.Println("  3. Run 'atlasbrief gateway' to start the bot")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	fmt.Printf("Model: %s\n", cfg.Model())
	fmt.Printf("API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Store: %s\n", cfg.Store.Type)
	fmt.Printf("Day cutoff: %02d:%02d %s\n", cfg.Report.CutoffHour, cfg.Report.CutoffMinute, cfg.Report.Timezone)
	fmt.Printf("Media: enabled=%v\n", cfg.Media.Enabled)

	printRecentDays(cfg)
	return nil
}

func printRecentDays(cfg *config.Config) {
	dbPath := cfg.History.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(config.ConfigDir(), "data", "history.db")
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Println("History: empty")
		return
	}

	idx, err := history.NewIndex(dbPath)
	if err != nil {
		fmt.Printf("History: error (%v)\n", err)
		return
	}
	defer idx.Close()

	counts, err := idx.DayCounts(7)
	if err != nil {
		fmt.Printf("History: error (%v)\n", err)
		return
	}
	if len(counts) == 0 {
		fmt.Println("History: empty")
		return
	}

	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	fmt.Println("Recent days:")
	for _, day := range days {
		fmt.Printf("  %s: %d events\n", day, counts[day])
	}
}

func providerDisplay(t string) string {
	if t == "" {
		return "gemini (default)"
	}
	return t
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}
