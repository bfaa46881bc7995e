// Package logging builds the operational *slog.Logger used by mockrelay.
//
// Operational logs describe what the server is doing (listeners started,
// upstream failures, recording outcomes). They are separate from the
// exchange log in package requestlog, which records the traffic itself.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	    Tee:    logFile,
//	})
//	logger.Info("engine started", "addr", "127.0.0.1:8080")
//
// Output goes to stderr as text or JSON. When Config.Tee is set (the
// --log-file flag), every record is also written there as JSON.
//
// Constructors throughout the module take an optional *slog.Logger and fall
// back to Nop.
package logging
