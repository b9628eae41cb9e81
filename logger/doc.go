// Package logger provides structured logging built on zerolog.
//
// Every pipeline component receives a *Logger tagged with its component
// name; run-scoped values (run id, asset id) travel on the context and are
// attached with WithContext.
//
//	log := logger.NewDefault("chunkscribe").WithComponent("merge")
//	log.Warn("caption line kept verbatim", logger.Fields(logger.FieldChunkIndex, 2))
package logger
