// Package logger builds the zap logger shared by the ckeytools server and CLI.
//
// Level and Format come from the log section of the configuration and
// default to info and json. Request handlers wrap the process logger with
// WithRayID so link changes made through the HTTP API can be traced back to
// the request that caused them.
//
//	log, err := logger.New(&cfg.Log)
//	if err != nil {
//		return err
//	}
//	logger.WithRayID(log, c).Info("Link forced", zap.String("ckey", ckey))
package logger
