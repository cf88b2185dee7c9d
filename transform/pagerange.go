package transform

// PageRange selects the pages to transform.
//
// StartingIndex is zero based. If it is past the last page no pages are
// included. A Count larger than the number of pages available includes as many
// pages as possible.
type PageRange struct {
	StartingIndex int `json:"starting_index"`
	Count         int `json:"count"`
}

// AllPages is the range covering every page of a document with pageCount pages
func AllPages(pageCount int) PageRange {
	return PageRange{StartingIndex: 0, Count: pageCount}
}

// Includes reports whether offset (relative to StartingIndex) is selected in a
// document of pagesInDoc pages
func (r PageRange) Includes(offset, pagesInDoc int) bool {
	if offset < 0 || r.StartingIndex < 0 || offset >= r.Count {
		return false
	}
	if r.StartingIndex+offset >= pagesInDoc {
		return false
	}
	return true
}

// Len is the number of pages the range selects in a document of pagesInDoc pages
func (r PageRange) Len(pagesInDoc int) int {
	available := pagesInDoc - r.StartingIndex
	if r.StartingIndex < 0 || available <= 0 || r.Count <= 0 {
		return 0
	}
	return min(available, r.Count)
}
