package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/goccy/go-json"

	"invoicescan/process/report"
)

// report prints a written clients spreadsheet as a table or as JSON objects
// keyed by column name.
func main() {
	var a struct {
		Path string `arg:"positional" default:"output/clients.xlsx" help:"spreadsheet to read"`
		JSON bool   `arg:"--json" help:"print rows as JSON"`
	}
	arg.MustParse(&a)

	rows, err := report.Read(a.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "empty sheet")
		os.Exit(1)
	}
	header, body := rows[0], rows[1:]

	if a.JSON {
		out := make([]map[string]string, 0, len(body))
		for _, row := range body {
			m := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(row) {
					m[col] = row[i]
				} else {
					m[col] = ""
				}
			}
			out = append(out, m)
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}

	fmt.Println(strings.Join(header, "\t"))
	for _, row := range body {
		fmt.Println(strings.Join(row, "\t"))
	}
	fmt.Printf("%d rows\n", len(body))
}
