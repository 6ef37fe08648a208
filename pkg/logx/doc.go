// Package logx provides wakebell's structured logging on top of zerolog.
//
// The Service owns the configured sinks (console and/or JSON file) and can
// swap them at runtime when the config file is reloaded. Loggers handed out
// by the Service stay live across Apply() calls, so components keep a Logger
// once and never care about reconfiguration.
//
// The zero Logger value is a safe no-op, which keeps optional logging fields
// (e.g. on stores) free of nil checks.
package logx
