package vcf

// RecordSource is the interface for streams that yield VCF records.
type RecordSource interface {
	// Header returns the parsed header.
	Header() *Header

	// Next reads the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Record, error)
}

// RecordSink is the interface for destinations that accept VCF records.
// WriteHeader must be called before the first Write.
type RecordSink interface {
	WriteHeader(h *Header) error
	Write(r *Record) error
	Flush() error
}
