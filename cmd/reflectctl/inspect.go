package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"reflectledger/config"
	"reflectledger/crypto"
	"reflectledger/integrations/indexer"
	"reflectledger/native/fees"
	"reflectledger/native/token"
)

type ledgerReport struct {
	Name             string            `json:"name"`
	Symbol           string            `json:"symbol"`
	TotalSupply      string            `json:"totalSupply"`
	Holders          int               `json:"holders"`
	PresaleCompleted bool              `json:"presaleCompleted"`
	HalfTax          bool              `json:"halfTax"`
	PendingSwap      string            `json:"pendingSwap"`
	Distributed      string            `json:"dividendsDistributed"`
	FeesBps          map[string]uint32 `json:"feesBps"`
	Account          *accountReport    `json:"account,omitempty"`
}

type accountReport struct {
	Address      string `json:"address"`
	Balance      string `json:"balance"`
	Withdrawable string `json:"withdrawable"`
	Withdrawn    string `json:"withdrawn"`
	ExcludedFee  bool   `json:"excludedFromFee"`
	ExcludedDiv  bool   `json:"excludedFromDividends"`
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the ledger configuration")
	account := fs.String("account", "", "Also report this account (hex or bech32)")
	asJSON := fs.Bool("json", false, "Emit JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	engine, ok, err := loadEngine(cfg, store)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no snapshot in %s; run simulate first", cfg.SnapshotPath())
	}
	report, err := buildReport(engine, *account)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(os.Stdout, report)
	return nil
}

func buildReport(e *token.Engine, rawAccount string) (*ledgerReport, error) {
	decimals := e.Decimals()
	report := &ledgerReport{
		Name:             e.Name(),
		Symbol:           e.Symbol(),
		TotalSupply:      config.FormatAmount(e.TotalSupply(), decimals),
		Holders:          e.HolderCount(),
		PresaleCompleted: e.PresaleCompleted(),
		HalfTax:          e.HalfTax(),
		PendingSwap:      config.FormatAmount(e.PendingSwap(), decimals),
		Distributed:      config.FormatAmount(e.TotalDividendsDistributed(), decimals),
		FeesBps:          make(map[string]uint32, len(fees.Components)),
	}
	for _, c := range fees.Components {
		report.FeesBps[string(c)] = e.Tax(c)
	}
	if rawAccount == "" {
		return report, nil
	}
	addr, err := crypto.ParseAccount(rawAccount)
	if err != nil {
		return nil, err
	}
	report.Account = &accountReport{
		Address:      crypto.FromCommon(addr).String(),
		Balance:      config.FormatAmount(e.BalanceOf(addr), decimals),
		Withdrawable: e.WithdrawableDividendsOf(addr).String(),
		Withdrawn:    e.WithdrawnDividendsOf(addr).String(),
		ExcludedFee:  e.IsExcludedFromFee(addr),
		ExcludedDiv:  e.IsExcludedFromDividends(addr),
	}
	return report, nil
}

func printReport(out io.Writer, r *ledgerReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "token\t%s (%s)\n", r.Name, r.Symbol)
	fmt.Fprintf(tw, "total supply\t%s\n", r.TotalSupply)
	fmt.Fprintf(tw, "holders\t%d\n", r.Holders)
	fmt.Fprintf(tw, "presale completed\t%t\n", r.PresaleCompleted)
	fmt.Fprintf(tw, "half tax\t%t\n", r.HalfTax)
	fmt.Fprintf(tw, "pending swap\t%s\n", r.PendingSwap)
	fmt.Fprintf(tw, "dividends distributed\t%s\n", r.Distributed)
	for _, c := range fees.Components {
		fmt.Fprintf(tw, "fee %s\t%d bps\n", c, r.FeesBps[string(c)])
	}
	if a := r.Account; a != nil {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "account\t%s\n", a.Address)
		fmt.Fprintf(tw, "balance\t%s\n", a.Balance)
		fmt.Fprintf(tw, "withdrawable\t%s\n", a.Withdrawable)
		fmt.Fprintf(tw, "withdrawn\t%s\n", a.Withdrawn)
		fmt.Fprintf(tw, "excluded from fees\t%t\n", a.ExcludedFee)
		fmt.Fprintf(tw, "excluded from dividends\t%t\n", a.ExcludedDiv)
	}
	_ = tw.Flush()
}

func runEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the ledger configuration")
	format := fs.String("format", "csv", "Export format: csv or jsonl")
	eventType := fs.String("type", "", "Only export this event type")
	account := fs.String("account", "", "Only export events touching this account")
	after := fs.Uint64("after", 0, "Only export events after this sequence number")
	limit := fs.Int("limit", 1000, "Maximum number of events")
	outPath := fs.String("out", "", "Write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	filter := indexer.Filter{Type: *eventType, AfterSeq: *after, Limit: *limit}
	if *account != "" {
		if filter.Account, err = crypto.ParseAccount(*account); err != nil {
			return err
		}
	}

	ix, err := indexer.Open(cfg.EventsDSN())
	if err != nil {
		return err
	}
	defer ix.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	records, err := ix.Query(ctx, filter)
	if err != nil {
		return err
	}

	var (
		payload  []byte
		checksum string
	)
	switch *format {
	case "csv":
		payload, checksum, err = indexer.EventsCSV(records)
	case "jsonl":
		payload, checksum, err = indexer.EventsJSONL(records)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		return err
	}
	if *outPath == "" {
		_, err = os.Stdout.Write(payload)
	} else {
		err = os.WriteFile(*outPath, payload, 0o644)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d events, sha256 %s\n", len(records), checksum)
	return nil
}
