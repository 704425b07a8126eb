package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Probe failure taxonomy. Strategies wrap transport and parse failures in
// these sentinels so the scheduler can classify outcomes without knowing
// wire formats. Check with errors.Is.
var (
	// ErrInvalidGame means the game id does not map to a known strategy.
	ErrInvalidGame = errors.New("invalid game")

	// ErrServerNotFound means a directory lookup missed: the endpoint is
	// not present in a master-server snapshot or API listing.
	ErrServerNotFound = errors.New("server not found")

	// ErrTimeout means the probe exceeded its wall-clock budget.
	ErrTimeout = errors.New("query timeout")

	// ErrTransport covers network, DNS and HTTP-status failures.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol means the server responded but the payload failed to
	// parse or validate.
	ErrProtocol = errors.New("protocol error")
)

// WrapTransport classifies err as a timeout or transport failure and wraps
// it accordingly. Context deadline expiry and net.Error timeouts both map
// to ErrTimeout; everything else is ErrTransport.
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %s", ErrTransport, err)
}

// WrapProtocol wraps a parse or validation failure in ErrProtocol.
func WrapProtocol(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrProtocol, err)
}
