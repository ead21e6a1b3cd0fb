package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

var (
	// ErrUnreachable means the backend could not be connected to.
	ErrUnreachable = errors.New("generation backend unreachable")
	// ErrTimeout means the backend call exceeded its time budget.
	ErrTimeout = errors.New("generation backend timed out")
	// ErrIncomplete means the backend stream ended without a terminal fragment.
	ErrIncomplete = errors.New("generation backend stream ended before completion")
)

// StatusError is returned when the backend answers with a non-OK status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("generation backend status %d", e.StatusCode)
	}
	return fmt.Sprintf("generation backend status %d: %s", e.StatusCode, body)
}

// Classify wraps transport errors with ErrUnreachable or ErrTimeout when
// they can be recognized. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(urlErr.Error(), "Client.Timeout") {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
