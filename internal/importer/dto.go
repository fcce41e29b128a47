package importer

import "github.com/vendaops/console/internal/mapping"

// StartImportInput carries one uploaded spreadsheet and how to read it.
// Either Platform names a built-in column mapping or Mapping brings a
// custom one; when Mapping is set it wins.
type StartImportInput struct {
	Filename string
	Data     []byte
	Platform string
	Mapping  *mapping.ColumnMapping
	StageID  string
	DelayMS  int
}

// ResumeImportInput re-submits the original file for a stopped job. The
// mapping and pacing are recovered from the stored job document.
type ResumeImportInput struct {
	JobID    string
	Filename string
	Data     []byte
}

// DetectMappingInput is an uploaded file to propose a column mapping for.
type DetectMappingInput struct {
	Filename string
	Data     []byte
}

// DetectionOutput is the proposed mapping for an uploaded file, with the
// validation result so the caller knows what still needs manual binding.
// The status filter is never guessed, so Validation normally reports it
// missing until the user picks the paid value.
type DetectionOutput struct {
	Headers    []string              `json:"headers"`
	Mapping    mapping.ColumnMapping `json:"mapping"`
	Validation mapping.Validation    `json:"validation"`
}
