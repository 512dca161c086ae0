package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/google"
	"github.com/stampbook/stampbook/importer"
	"github.com/stampbook/stampbook/notify"
)

var scanUserID string

// ScanCmd runs a one-shot synchronous scan for a single user
var ScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a user's Gmail and Calendar for travel evidence",
	Long: `Run a synchronous import scan for one user and print the ranked
country candidates. The user's Google account must already be connected.`,
	RunE: runScan,
}

func init() {
	ScanCmd.Flags().StringVar(&scanUserID, "user", "", "User ID to scan (required)")
	ScanCmd.MarkFlagRequired("user")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := importer.NewStore(database)
	googleSvc := google.NewService(cfg.Google, google.NewTokenStore(database))
	orchestrator := newOrchestrator(cfg, store, googleSvc, notify.Nop{})

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Scanning sources for user %s...", scanUserID))

	start := time.Now()
	results, err := orchestrator.ScanSync(context.Background(), scanUserID, cfg.Import.SyncMaxEmails, cfg.Import.SyncMaxEvents)
	if err != nil {
		spinner.Fail(fmt.Sprintf("Scan failed: %v", err))
		if errors.Is(err, errors.ErrNotConnected) {
			pterm.Info.Println("Connect the user's Google account first via POST /api/import/google/connect")
		}
		return err
	}
	spinner.Success(fmt.Sprintf("Scanned %d emails and %d events in %s",
		results.ScannedEmails, results.ScannedEvents, time.Since(start).Round(time.Millisecond)))

	if len(results.Candidates) == 0 {
		pterm.Info.Println("No new countries found")
		return nil
	}

	rows := pterm.TableData{{"Country", "Code", "Emails", "Events", "Confidence"}}
	for _, c := range results.Candidates {
		rows = append(rows, []string{
			c.CountryName,
			c.CountryCode,
			fmt.Sprintf("%d", c.EmailCount),
			fmt.Sprintf("%d", c.CalendarEventCount),
			fmt.Sprintf("%.2f", c.Confidence),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	pterm.Info.Printf("Found %d candidate countries\n", len(results.Candidates))

	return nil
}
