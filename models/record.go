package models

// ExtractedRecord is one output row: the client fields parsed from a single
// invoice image. Empty strings mean the field was not found.
type ExtractedRecord struct {
	ClientName    string `json:"client_name"`
	ClientAddress string `json:"client_address"`
	TaxID         string `json:"tax_id"`
	SourceFile    string `json:"source_file"`
}

// Empty reports whether none of the client fields were extracted.
func (r ExtractedRecord) Empty() bool {
	return r.ClientName == "" && r.ClientAddress == "" && r.TaxID == ""
}
