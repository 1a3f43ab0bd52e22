package serverapp

import (
	"fmt"
	"log/slog"
	"os"
)

// Stop reasons reported by WaitForStop.
const (
	StopReasonSignal      = "signal"
	StopReasonServerError = "server_error"
)

// Start serves the GraphQL endpoint in the background. Init must have succeeded.
// Calling Start again returns the channel of the running server.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("table-graphql app is not initialized")
	}
	if !a.started {
		a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
		a.started = true
	}
	return a.serverErrors, nil
}

// WaitForStop blocks until a signal arrives on stop or the server exits.
// A nil serverErrors falls back to the channel returned by Start.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("nothing to wait on: stop and server channels are both nil")
	}

	// Receiving from a nil channel blocks forever, so a missing side never wins.
	select {
	case err := <-serverErrors:
		return StopReasonServerError, serverStopError(err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("stop signal received; draining GraphQL server", slog.String("signal", sig.String()))
		}
		return StopReasonSignal, nil
	}
}

func serverStopError(err error) error {
	if err == nil {
		return fmt.Errorf("graphql server exited without an error")
	}
	return fmt.Errorf("graphql server failed: %w", err)
}
