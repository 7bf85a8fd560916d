package result

import "io"

// Ingest runs a spreadsheet through the whole pipeline: Read, Validate then Normalize.
// On error no Set is returned.
func Ingest(content []byte, name string, v *RowValidator) (Set, error) {
	rows, err := Read(content, name)
	if err != nil {
		return nil, err
	}
	return validateAndNormalize(rows, v)
}

// IngestFrom is Ingest reading at most limit bytes from r.
func IngestFrom(r io.Reader, name string, limit int64, v *RowValidator) (Set, error) {
	rows, err := ReadFrom(r, name, limit)
	if err != nil {
		return nil, err
	}
	return validateAndNormalize(rows, v)
}

func validateAndNormalize(rows []RawRow, v *RowValidator) (Set, error) {
	rows, err := v.Validate(rows)
	if err != nil {
		return nil, err
	}
	return Normalize(rows), nil
}
