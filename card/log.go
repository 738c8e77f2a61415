package card

import (
	"io"
	"log"
)

var logger = log.New(io.Discard, "card: ", 0)

// SetLogger directs the package trace log to l. A nil l silences it.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	logger = l
}
