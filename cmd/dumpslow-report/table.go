package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kcz17/dumpslow/aggregator"
)

const tableWidth = 71

var columnLabels = map[aggregator.OrderBy]string{
	aggregator.ByCount:   "Count",
	aggregator.ByTotal:   "Accumulated time",
	aggregator.ByAverage: "Average time",
}

// writeTable prints rows as a two-column table of view and the value rows
// are ordered by.
func writeTable(w io.Writer, orderBy aggregator.OrderBy, rows []aggregator.Row) error {
	if _, err := fmt.Fprintf(w, " View %*s\n", tableWidth-5, columnLabels[orderBy]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, " %s\n", strings.Repeat("=", tableWidth)); err != nil {
		return err
	}

	for _, row := range rows {
		pad := tableWidth - 1 - utf8.RuneCountInString(row.View)
		if pad < 0 {
			pad = 0
		}
		if _, err := fmt.Fprintf(w, " %s %*s\n", row.View, pad, cell(orderBy, row)); err != nil {
			return err
		}
	}
	return nil
}

func cell(orderBy aggregator.OrderBy, row aggregator.Row) string {
	switch orderBy {
	case aggregator.ByCount:
		return strconv.Itoa(row.Count)
	case aggregator.ByAverage:
		return fmt.Sprintf("%2.2f", row.AverageSeconds)
	default:
		return fmt.Sprintf("%2.2f", row.TotalSeconds)
	}
}
