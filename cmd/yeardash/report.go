package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"yeardash/internal/aggregate"
	"yeardash/internal/auth"
	"yeardash/internal/backend"
	"yeardash/internal/cli"
	"yeardash/internal/core"
	"yeardash/internal/export"
	"yeardash/internal/services"
	"yeardash/internal/session"
	gsheet "yeardash/internal/sheets/google"
)

var (
	reportEmail    string
	reportPassword string
	reportMonth    string
	reportType     string
	reportXLSX     string
	reportSheets   bool

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Print a month's finance summary for an account",
		Long: `Signs in with an email and password account, prints the per-currency
summary and category breakdown of a month and optionally writes the month
to an XLSX file or the configured spreadsheet.`,
		RunE: runReport,
	}
)

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportEmail, "email", "", "account email")
	f.StringVar(&reportPassword, "password", os.Getenv("YEARDASH_PASSWORD"), "account password (defaults to $YEARDASH_PASSWORD)")
	f.StringVar(&reportMonth, "month", "", "month as YYYY-MM (defaults to the current month)")
	f.StringVar(&reportType, "type", string(aggregate.FilterAll), "transactions to list: all, income or expense")
	f.StringVar(&reportXLSX, "xlsx", "", "also write the month to this XLSX file")
	f.BoolVar(&reportSheets, "sheets", false, "also append the month to the configured spreadsheet")
	_ = reportCmd.MarkFlagRequired("email")
}

func runReport(cmd *cobra.Command, _ []string) error {
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := cmd.Context()
	loc := cfg.Location()

	period := aggregate.MonthOf(time.Now().In(loc))
	if reportMonth != "" {
		p, err := aggregate.ParsePeriod(reportMonth, loc)
		if err != nil {
			return fmt.Errorf("invalid --month %q: %w", reportMonth, err)
		}
		period = p
	}
	filter := aggregate.TypeFilter(reportType)
	if !filter.Valid() {
		return fmt.Errorf("invalid --type %q", reportType)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	bcfg.AMQPURL = ""
	result, err := backend.NewFactory(logger, nil).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	holder := session.New(nil)
	gw := auth.NewGateway(auth.NewLocalProvider(result.Backend), holder, auth.WithLogger(logger))
	if _, err := gw.SignIn(ctx, reportEmail, reportPassword); err != nil {
		return errors.New(gw.LastError())
	}

	views := services.NewViewService(result.Backend).InLocation(loc)
	view, err := views.Finance(ctx, holder.Identity(), period, filter)
	if err != nil {
		return err
	}
	if err := printFinance(cmd.OutOrStdout(), view, loc); err != nil {
		return err
	}

	if reportXLSX != "" {
		data, err := export.MonthXLSX(view, loc)
		if err != nil {
			return err
		}
		if err := os.WriteFile(reportXLSX, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", reportXLSX, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nWorkbook written to %s\n", reportXLSX)
	}

	if reportSheets {
		if !cfg.SheetsEnabled() {
			return errors.New("--sheets needs GOOGLE_SPREADSHEET_ID")
		}
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return err
		}
		ref, err := client.AppendTransactions(ctx, period, view.Transactions)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Appended %d rows at %s\n", len(view.Transactions), ref)
	}
	return nil
}

func printFinance(out io.Writer, view aggregate.FinanceView, loc *time.Location) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Finance %s (%d transactions)\n\n", view.Period, view.Summary.Count)
	fmt.Fprintln(tw, "CURRENCY\tINCOME\tEXPENSES\tBALANCE")
	for _, cur := range view.Summary.Currencies {
		t := view.Summary.ByCurrency[cur]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cur,
			core.FormatAmount(t.Income, cur), core.FormatAmount(t.Expenses, cur), core.FormatAmount(t.Balance, cur))
	}

	if len(view.Breakdown) > 0 {
		fmt.Fprintln(tw, "\nTYPE\tCATEGORY\tTOTAL\tCOUNT")
		for _, row := range view.Breakdown {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", row.Type, row.Category, row.Total.StringFixed(2), row.Count)
		}
	}

	if len(view.Transactions) > 0 {
		fmt.Fprintln(tw, "\nDATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
		for _, t := range view.Transactions {
			date := t.Date.String()
			if tm, ok := t.Date.ResolveIn(loc); ok {
				date = tm.In(loc).Format("2006-01-02")
			}
			amount := core.FormatAmount(t.Amount, t.Currency)
			if t.Type == core.Expense {
				amount = "-" + amount
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", date, t.Description, t.Category, amount)
		}
	}
	return tw.Flush()
}
