// Package ecc implements the page redundancy codes stored in the spare
// area that follows each page of a memory card image.
package ecc

// Result is the outcome of checking a page against its spare area.
type Result int

const (
	// OK means the page and its code agree.
	OK Result = iota
	// Corrected means a single bit error was found and repaired in place,
	// either in the page data or in the stored code.
	Corrected
	// Failed means the error could not be corrected.
	Failed
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Corrected:
		return "corrected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// A Codec computes and verifies the spare area of a page.
type Codec interface {
	// SpareSize returns the number of spare bytes stored after a page
	// of the given size.
	SpareSize(pageSize int) int
	// Encode returns the spare area for page.
	Encode(page []byte) []byte
	// Check verifies page against spare, correcting both in place
	// when possible.
	Check(page, spare []byte) Result
}

// None is the codec of images without a spare area.
type None struct{}

var _ Codec = None{}

func (None) SpareSize(pageSize int) int { return 0 }

func (None) Encode(page []byte) []byte { return nil }

func (None) Check(page, spare []byte) Result { return OK }
