package types

// PrintingOptions captures the customer's print preferences. The struct is
// copied onto the PrintJob at creation so later order edits cannot change an
// already dispatched job.
type PrintingOptions struct {
	Copies      int    `json:"copies"`
	Color       bool   `json:"color"`
	DoubleSided bool   `json:"doubleSided"`
	PaperSize   string `json:"paperSize"`
	Binding     string `json:"binding,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Normalized returns a copy with sane defaults applied.
func (p PrintingOptions) Normalized() PrintingOptions {
	out := p
	if out.Copies <= 0 {
		out.Copies = 1
	}
	if out.PaperSize == "" {
		out.PaperSize = "A4"
	}
	return out
}
