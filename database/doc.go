// Package database opens the run ledger's SQL database through GORM.
//
// SQLite is the only driver compiled in; the ledger is a local record of
// runs and their chunks, not a shared service. Connections are retried
// with linear backoff, pooled, and logged through the project logger.
//
//	db, err := database.Open(ctx, database.Config{Enabled: true, DSN: "runs.db"}, log)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.AutoMigrate(&Run{}, &RunChunk{})
package database
