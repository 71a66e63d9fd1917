package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"larkpub/internal/publish"
	"larkpub/internal/version"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
)

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Printf("%s %s\n", version.AppName, version.Short())
}

func printDryRun(s *publish.RunSummary) {
	if len(s.Pending) == 0 {
		fmt.Printf("\n%s scanned %d, everything is current.\n", green("Nothing to upload:"), s.Scanned)
		return
	}

	fmt.Println()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Size"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	var total uint64
	for _, c := range s.Pending {
		table.Append([]string{c.RelPath, humanize.IBytes(uint64(c.Size))})
		total += uint64(c.Size)
	}
	table.Render()

	fmt.Printf("\n%s %d file(s), %s total. Nothing was uploaded.\n",
		yellow("Dry run:"), len(s.Pending), humanize.IBytes(total))
}

func printSummary(s *publish.RunSummary, stateDir string) {
	uploaded := fmt.Sprintf("%d uploaded", s.Uploaded)
	if s.Uploaded > 0 {
		uploaded = green(uploaded)
	}
	failed := fmt.Sprintf("%d failed", s.Failed)
	if s.Failed > 0 {
		failed = red(failed)
	}

	fmt.Printf("\n%s scanned %d, skipped %d unchanged, %s, %s in %s\n",
		cyan("Done:"), s.Scanned, s.Skipped, uploaded, failed,
		s.Elapsed.Round(time.Millisecond))

	if s.Failed > 0 {
		fmt.Printf("Failures are recorded in %s, run again with %s once the cause is fixed.\n",
			filepath.Join(stateDir, publish.FailureFileName), yellow("--retry"))
	}
}
