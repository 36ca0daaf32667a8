// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Components receive a named *zap.Logger:
//
//	logger := logging.NewDefault()
//	p := pool.New(pool.Options{Logger: logger.Component("pool")})
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
