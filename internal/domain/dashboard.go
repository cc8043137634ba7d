package domain

// ImpactEntry is one dashboard slot: the BCM impact generation for a single
// retrieved match. Entries keep the retrieval order of their source matches.
// A failed generation sets FailureReason and leaves Summary empty; the entry
// still occupies its original position.
type ImpactEntry struct {
	MatchID       string
	Score         float64
	Summary       string
	FailureReason string
}

// Failed reports whether this entry carries an error marker instead of
// generated text.
func (e ImpactEntry) Failed() bool { return e.FailureReason != "" }
