package textsearch

// Corpus supplies per-page document text. Pages are 1-based; a page reports
// false while its text has not been extracted yet.
type Corpus interface {
	PageCount() int
	PageText(page int) (string, bool)
}
