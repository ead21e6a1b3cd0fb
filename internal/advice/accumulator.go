package advice

import (
	"strings"

	"energy-advisor/internal/llm"
)

// Accumulator buffers streamed text until the backend marks the stream done.
// It is owned by a single stream and is not safe for concurrent use.
type Accumulator struct {
	buf      strings.Builder
	done     bool
	released bool
}

// Add appends the fragment text and reports whether the terminal fragment has
// been seen. Fragments after the terminal one are ignored.
func (a *Accumulator) Add(frag llm.Fragment) bool {
	if a.done {
		return true
	}
	a.buf.WriteString(frag.Text)
	if frag.Done {
		a.done = true
	}
	return a.done
}

// Done reports whether the terminal fragment has been seen.
func (a *Accumulator) Done() bool {
	return a.done
}

// Len returns the number of buffered bytes.
func (a *Accumulator) Len() int {
	return a.buf.Len()
}

// Final returns the complete text once, after the terminal fragment.
func (a *Accumulator) Final() (string, bool) {
	if !a.done || a.released {
		return "", false
	}
	a.released = true
	return a.buf.String(), true
}
