package indexer

// Progress is one progress callback invocation, per spec §4.7 step 5:
// phases are "preparing" (reserving the first 10%) and "processing" (the
// remaining 90%).
type Progress struct {
	Phase      string
	Current    int
	Total      int
	Percentage float64
}

// ProgressFunc receives Progress updates during IndexFull/IndexIncremental.
// A nil ProgressFunc is valid and simply receives no callbacks.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(p Progress) {
	if f != nil {
		f(p)
	}
}
