package store

// Session is one journaling run over one topic map.
type Session struct {
	ID    string
	MapID string
	Label string
}

// EventRecord is one journaled event. Old and New hold the payload as
// canonical JSON, empty when the event carries none.
type EventRecord struct {
	Session    string
	Seq        int64
	MapID      string
	Kind       string
	SourceID   uint64
	SourceKind string
	Old        string
	New        string
}
