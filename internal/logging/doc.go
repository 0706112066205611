// Package logging provides structured logging for the autoprov tool.
//
// This package wraps zap with convenience functions for the logging patterns
// used throughout the provisioning engine. Logging is silent by default so
// that normal CLI output (phase narration, batch summaries) stays readable;
// set AUTOPROV_LOG_LEVEL to enable diagnostic output.
//
// # Log Levels
//
//   - Debug: command/response traces on control-device sessions, poll results
//   - Info: phase transitions (discovery, role switch, convergence, OTA)
//   - Warn: retries, transient unreachability
//   - Error: aborted instructions, fatal configuration problems
//
// # Usage
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
//	logging.Info("Convergence confirmed",
//	    zap.String("factory_ssid", "shelly1-746290"),
//	    zap.Int("polls", 14),
//	)
//
// All logging functions are safe for concurrent use.
package logging
