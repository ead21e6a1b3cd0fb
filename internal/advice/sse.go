package advice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// writeSSE writes one event as a "data:" frame and flushes it to the client.
func writeSSE(w io.Writer, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
