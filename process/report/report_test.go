package report

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"invoicescan/models"
)

func TestWriteRowsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.xlsx")
	recs := []models.ExtractedRecord{
		{ClientName: "Acme Corp", ClientAddress: "123 Main St", TaxID: "XYZ999", SourceFile: "in/a.jpg"},
		{SourceFile: "in/b.png"},
		{ClientName: "Globex", SourceFile: "in/c.png"},
	}
	if err := Write(path, recs, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := [][]string{
		{"client_name", "client_address", "tax_id", "source_file"},
		{"Acme Corp", "123 Main St", "XYZ999", "in/a.jpg"},
		{"", "", "", "in/b.png"},
		{"Globex", "", "", "in/c.png"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows:\n%q\nwant\n%q", rows, want)
	}
}

func TestWriteHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := Write(path, nil, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], Columns(false)) {
		t.Fatalf("expected header-only sheet got %q", rows)
	}
}

func TestWriteMissingParentIsWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.xlsx")
	err := Write(path, nil, true)
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error got %v", err)
	}
}

func TestReadKeepsTrailingBlankRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.xlsx")
	recs := []models.ExtractedRecord{
		{ClientName: "Acme Corp", TaxID: "XYZ999", SourceFile: "in/a.jpg"},
		{SourceFile: "in/b.png"},
		{SourceFile: "in/c.png"},
	}
	if err := Write(path, recs, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	rows, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := [][]string{
		{"client_name", "client_address", "tax_id"},
		{"Acme Corp", "", "XYZ999"},
		{"", "", ""},
		{"", "", ""},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("unexpected rows:\n%q\nwant\n%q", rows, want)
	}
}
