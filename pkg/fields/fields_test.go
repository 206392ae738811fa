package fields

import "testing"

func TestExtractInvoiceScenario(t *testing.T) {
	got := FromTexts([]string{"INVOICE #123", "Bill To: Acme Corp", "123 Main St", "Tax ID: XYZ999"})
	want := Fields{ClientName: "Acme Corp", ClientAddress: "123 Main St", TaxID: "XYZ999"}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}

func TestExtractValueOnNextLine(t *testing.T) {
	got := FromTexts([]string{"BILLED TO", "Globex Ltd", "Address:", "9 Elm Road", "VAT No.", "GB123456789"})
	want := Fields{ClientName: "Globex Ltd", ClientAddress: "9 Elm Road", TaxID: "GB123456789"}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}

func TestExtractFirstMatchWins(t *testing.T) {
	got := FromTexts([]string{"Client: First Co", "Customer: Second Co", "Tax ID: A1", "TIN: B2"})
	if got.ClientName != "First Co" {
		t.Fatalf("expected first client name got %q", got.ClientName)
	}
	if got.TaxID != "A1" {
		t.Fatalf("expected first tax id got %q", got.TaxID)
	}
}

func TestExtractLongestLabelWins(t *testing.T) {
	got := FromTexts([]string{"Client Address: 5 Harbour Way", "Client Name: Initech"})
	if got.ClientAddress != "5 Harbour Way" {
		t.Fatalf("expected address from Client Address label got %q", got.ClientAddress)
	}
	if got.ClientName != "Initech" {
		t.Fatalf("expected Initech got %q", got.ClientName)
	}
}

func TestExtractMissingFieldsStayEmpty(t *testing.T) {
	got := FromTexts([]string{"INVOICE", "Total 40.00", "Thank you"})
	if got != (Fields{}) {
		t.Fatalf("expected empty fields got %+v", got)
	}
	if got := FromTexts(nil); got != (Fields{}) {
		t.Fatalf("expected empty fields for no lines got %+v", got)
	}
}

func TestExtractLabelFollowedByLabelStaysEmpty(t *testing.T) {
	got := FromTexts([]string{"Bill To:", "Tax ID: Z9"})
	if got.ClientName != "" {
		t.Fatalf("label line must not become a value, got %q", got.ClientName)
	}
	if got.TaxID != "Z9" {
		t.Fatalf("expected Z9 got %q", got.TaxID)
	}
	if got.ClientAddress != "" {
		t.Fatalf("expected no address got %q", got.ClientAddress)
	}
}

func TestExtractLabelsNeedWordBoundaries(t *testing.T) {
	got := FromTexts([]string{"Martin Clientele Services", "Vatican Road"})
	if got != (Fields{}) {
		t.Fatalf("labels inside words must not match, got %+v", got)
	}
}

func TestExtractAddressFallbackSkipsUsedLines(t *testing.T) {
	got := FromTexts([]string{"Bill To:", "Acme Corp"})
	if got.ClientName != "Acme Corp" || got.ClientAddress != "" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestExtractDeterministic(t *testing.T) {
	in := []string{"Sold to - Umbrella Corp", "1 Raccoon St", "GSTIN: 22AAAAA0000A1Z5", "Customer: Other"}
	first := FromTexts(in)
	for i := 0; i < 50; i++ {
		if got := FromTexts(in); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
	if first.ClientName != "Umbrella Corp" || first.ClientAddress != "1 Raccoon St" || first.TaxID != "22AAAAA0000A1Z5" {
		t.Fatalf("unexpected %+v", first)
	}
}

func TestExtractLeftmostLabelWins(t *testing.T) {
	got := FromTexts([]string{"Client: National Address Bureau", "12 Park Lane", "Tax ID: Q1"})
	want := Fields{ClientName: "National Address Bureau", ClientAddress: "12 Park Lane", TaxID: "Q1"}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}

	got = FromTexts([]string{"Address: 4 Customer Plaza", "Bill To: Hooli"})
	if got.ClientAddress != "4 Customer Plaza" || got.ClientName != "Hooli" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestFieldNamesAndValues(t *testing.T) {
	fs := Fields{ClientName: "Acme", ClientAddress: "1 Main St", TaxID: "X1"}
	want := map[string]string{"client_name": "Acme", "client_address": "1 Main St", "tax_id": "X1"}
	if len(All) != len(want) {
		t.Fatalf("expected %d fields got %d", len(want), len(All))
	}
	for _, f := range All {
		if v, ok := want[f.String()]; !ok || fs.Value(f) != v {
			t.Fatalf("field %s: got %q", f, fs.Value(f))
		}
	}
	if Field(99).String() != "unknown" || fs.Value(Field(99)) != "" {
		t.Fatalf("unexpected handling of unknown field")
	}
}
