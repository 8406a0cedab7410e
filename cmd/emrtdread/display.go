package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/barnettlynn/emrtd/pkg/emrtd"
)

var (
	colorHeader  = text.Colors{text.FgCyan, text.Bold}
	colorLabel   = text.Colors{text.FgYellow}
	colorValue   = text.Colors{text.FgWhite}
	colorSuccess = text.Colors{text.FgGreen}
	colorError   = text.Colors{text.FgRed}
	colorWarn    = text.Colors{text.FgYellow}
)

func getTableStyle() table.Style {
	style := table.StyleRounded
	style.Color.Header = colorHeader
	style.Color.Row = text.Colors{text.FgWhite}
	style.Options.SeparateRows = false
	return style
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(getTableStyle())
	return t
}

func printError(msg string) {
	fmt.Println(colorError.Sprintf("✗ %s", msg))
}

func printSuccess(msg string) {
	fmt.Println(colorSuccess.Sprintf("✓ %s", msg))
}

func printWarning(msg string) {
	fmt.Println(colorWarn.Sprintf("⚠ %s", msg))
}

func printReaderList(readers []string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("AVAILABLE PC/SC READERS")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 6},
		{Number: 2, Colors: colorValue, WidthMin: 40},
	})
	if len(readers) == 0 {
		t.AppendRow(table.Row{"Status", colorWarn.Sprint("no readers found")})
	} else {
		for i, r := range readers {
			t.AppendRow(table.Row{fmt.Sprintf("[%d]", i), r})
		}
	}
	t.Render()
}

func printSessionInfo(method emrtd.AccessMethod) {
	fmt.Println()
	t := newTable()
	t.SetTitle("SESSION")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 20},
		{Number: 2, Colors: colorValue, WidthMin: 40},
	})
	t.AppendRow(table.Row{"Access method", accessMethodName(method)})
	t.Render()
}

func accessMethodName(method emrtd.AccessMethod) string {
	switch method {
	case emrtd.AccessPACE:
		return "PACE"
	case emrtd.AccessBAC:
		return "BAC"
	default:
		return "none"
	}
}

func printMRZ(mrz emrtd.MRZ) {
	fmt.Println()
	t := newTable()
	t.SetTitle("DG1 — MACHINE READABLE ZONE")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 20},
		{Number: 2, Colors: colorValue, WidthMin: 40},
	})
	t.AppendRow(table.Row{"Document type", mrz.DocumentType})
	t.AppendRow(table.Row{"Issuing state", mrz.IssuingState})
	t.AppendRow(table.Row{"Document number", mrz.DocumentNumber})
	t.AppendRow(table.Row{"Surname", mrz.Surname})
	t.AppendRow(table.Row{"Given names", mrz.GivenNames})
	t.AppendRow(table.Row{"Nationality", mrz.Nationality})
	t.AppendRow(table.Row{"Date of birth", mrz.DateOfBirth})
	t.AppendRow(table.Row{"Sex", mrz.Sex})
	t.AppendRow(table.Row{"Date of expiry", mrz.DateOfExpiry})
	t.Render()
}

func printCOM(com emrtd.COM) {
	fmt.Println()
	t := newTable()
	t.SetTitle("EF.COM")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 20},
		{Number: 2, Colors: colorValue, WidthMin: 40},
	})
	t.AppendRow(table.Row{"LDS version", com.LDSVersion})
	t.AppendRow(table.Row{"Unicode version", com.UnicodeVersion})
	for _, dg := range com.PresentDataGroups() {
		t.AppendRow(table.Row{"Present data group", emrtdDGName(dg)})
	}
	t.Render()
}

func emrtdDGName(dg emrtd.DataGroup) string {
	return fmt.Sprintf("DG%d", dg)
}

func printAAVerdict(v emrtd.AAVerdict) {
	fmt.Println()
	t := newTable()
	t.SetTitle("ACTIVE AUTHENTICATION")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 20},
		{Number: 2, Colors: colorValue, WidthMin: 40},
	})
	status := colorError.Sprint("FAILED")
	if v.Verified {
		status = colorSuccess.Sprint("verified")
	}
	t.AppendRow(table.Row{"Nonce", fmt.Sprintf("%X", v.Nonce)})
	t.AppendRow(table.Row{"Result", status})
	t.Render()
}
