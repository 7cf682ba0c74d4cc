package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/config"
	"github.com/JakeFAU/sirup-adspend/internal/export"
	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
	"github.com/JakeFAU/sirup-adspend/internal/progress/sinks"
)

// defaultFileName is the NoOptDefVal of --csv/--xlsx: the conventional name
// under export.dir.
const defaultFileName = "auto"

const hubCloseTimeout = 10 * time.Second

type scrapeOptions struct {
	csvPath    string
	xlsxPath   string
	eventsPath string
	noTable    bool
	noColor    bool
}

func newScrapeCmd() *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape and print the matching packages",
		Long: `Lists every work unit of the organization, fetches each unit's packages
and their work descriptions, and keeps the packages that mention
advertising spend. Progress is printed per unit; the result is printed as a
table and optionally written to CSV and XLSX.`,
		Example: `  adspend scrape --kldi D1005 --tahun 2025
  adspend scrape --kldi D1005 --tahun 2024 --unit-workers 5 --csv --xlsx report.xlsx`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFrom(cmd.Context())
			if err != nil {
				return err
			}
			return runScrape(cmd.Context(), e, opts, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.String("kldi", "", "KLDI (organization group) ID, e.g. D1005")
	fs.String("tahun", "", "fiscal year, e.g. 2025")
	fs.Int("unit-workers", 0, "units processed concurrently (1-20)")
	fs.Int("detail-workers", 0, "detail pages fetched concurrently per unit (1-50)")
	fs.String("extractor", "", "detail extractor: scan or dom")
	bindFlag(fs, "kldi", "scrape.org_group_id")
	bindFlag(fs, "tahun", "scrape.fiscal_year")
	bindFlag(fs, "unit-workers", "scrape.unit_concurrency")
	bindFlag(fs, "detail-workers", "scrape.detail_concurrency")
	bindFlag(fs, "extractor", "scrape.extractor")

	fs.StringVar(&opts.csvPath, "csv", "", "write CSV to FILE (default name when FILE is omitted)")
	fs.Lookup("csv").NoOptDefVal = defaultFileName
	fs.StringVar(&opts.xlsxPath, "xlsx", "", "write XLSX to FILE (default name when FILE is omitted)")
	fs.Lookup("xlsx").NoOptDefVal = defaultFileName
	fs.StringVar(&opts.eventsPath, "events", "", "append progress events as JSON lines to FILE")
	fs.BoolVar(&opts.noTable, "no-table", false, "skip the result table")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colored status lines")
	return cmd
}

func runScrape(ctx context.Context, e *env, opts *scrapeOptions, out io.Writer) error {
	logger := e.logger
	params := e.cfg.RunParams()
	if err := params.Validate(); err != nil {
		return err
	}

	eventSinks := []progress.Sink{
		sinks.NewConsoleSink(out, !opts.noColor && !color.NoColor),
		sinks.NewLogSink(logger.Named("events")),
	}
	var eventsDone <-chan error
	if opts.eventsPath != "" {
		ch := sinks.NewChannelSink(0)
		eventSinks = append(eventSinks, ch)
		eventsDone = writeEvents(opts.eventsPath, ch.Events())
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")}, eventSinks...)

	orch, err := newOrchestrator(e.cfg, logger, hub)
	if err != nil {
		return err
	}
	result, runErr := orch.Run(ctx, params)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hubCloseTimeout)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close", zap.Error(err))
	}
	if eventsDone != nil {
		if err := <-eventsDone; err != nil {
			logger.Warn("write progress events", zap.Error(err))
		}
	}

	if errors.Is(runErr, procurement.ErrListUnits) || errors.Is(runErr, procurement.ErrInvalidParams) {
		logger.Error("scrape failed", zap.Error(runErr))
		return runErr
	}

	if err := report(out, e.cfg, opts, result); err != nil {
		return err
	}
	if runErr != nil {
		logger.Warn("scrape interrupted; partial result reported", zap.Error(runErr))
		return runErr
	}
	return nil
}

func report(out io.Writer, cfg config.Config, opts *scrapeOptions, result procurement.RunResult) error {
	if len(result.Records) == 0 {
		fmt.Fprintln(out, "⚠️ Tidak ada data yang cocok ditemukan.")
		return nil
	}
	if !opts.noTable {
		export.RenderTable(out, result.Records)
	}

	params := result.Params
	targets := []struct {
		flag    string
		enabled bool
		format  export.Format
	}{
		{opts.csvPath, cfg.Export.CSV, export.FormatCSV},
		{opts.xlsxPath, cfg.Export.XLSX, export.FormatXLSX},
	}
	for _, t := range targets {
		path := exportPath(t.flag, t.enabled, cfg.Export.Dir, params, t.format)
		if path == "" {
			continue
		}
		if err := export.WriteFile(path, t.format, result.Records); err != nil {
			return err
		}
		fmt.Fprintf(out, "💾 %s disimpan ke %s\n", t.format, path)
	}
	return nil
}

// exportPath resolves where a format goes: an explicit flag value wins, the
// bare flag or export.<format>=true selects the conventional name.
func exportPath(flagValue string, enabled bool, dir string, params procurement.RunParams, f export.Format) string {
	switch {
	case flagValue != "" && flagValue != defaultFileName:
		return flagValue
	case flagValue == defaultFileName || enabled:
		if dir == "" {
			dir = "."
		}
		return filepath.Join(dir, export.FileName(params.OrgGroupID, params.FiscalYear, f))
	default:
		return ""
	}
}

// writeEvents drains events into path as JSON lines until the channel closes.
func writeEvents(path string, events <-chan progress.Event) <-chan error {
	done := make(chan error, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			// Drain so the hub never blocks on this sink.
			for range events {
			}
			done <- fmt.Errorf("open events file: %w", err)
			return
		}
		enc := json.NewEncoder(f)
		var writeErr error
		for evt := range events {
			if writeErr == nil {
				writeErr = enc.Encode(eventRecord(evt))
			}
		}
		if cerr := f.Close(); writeErr == nil {
			writeErr = cerr
		}
		done <- writeErr
	}()
	return done
}

type eventLine struct {
	RunID     string  `json:"run_id"`
	TS        string  `json:"ts"`
	Stage     string  `json:"stage"`
	UnitIndex int     `json:"unit_index,omitempty"`
	UnitTotal int     `json:"unit_total,omitempty"`
	UnitID    string  `json:"unit_id,omitempty"`
	UnitName  string  `json:"unit_name,omitempty"`
	Packages  int     `json:"packages,omitempty"`
	Matched   int     `json:"matched,omitempty"`
	Status    string  `json:"status,omitempty"`
	Seconds   float64 `json:"seconds"`
	Note      string  `json:"note,omitempty"`
}

func eventRecord(evt progress.Event) eventLine {
	return eventLine{
		RunID:     evt.RunUUID().String(),
		TS:        evt.TS.Format(time.RFC3339Nano),
		Stage:     string(evt.Stage),
		UnitIndex: evt.UnitIndex,
		UnitTotal: evt.UnitTotal,
		UnitID:    evt.UnitID,
		UnitName:  evt.UnitName,
		Packages:  evt.Packages,
		Matched:   evt.MatchedCount,
		Status:    string(evt.Status),
		Seconds:   evt.Dur.Seconds(),
		Note:      evt.Note,
	}
}
