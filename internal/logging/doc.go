// Package logging assembles the slog loggers used across audiobatch.
//
// Components take a *slog.Logger and fall back to a discarding logger when
// none is given. Console output is logfmt with a short timestamp; the JSON
// format uses "ts", "level" and "msg" keys for log shippers.
package logging
