// Package logger provides adapters for popular logger libraries to work with slotdb's Logger interface.
//
// The adapters allow you to use your existing logger with slotdb without writing boilerplate.
// Both take optional key-value pairs that are attached to every entry, which is handy when
// several databases log to one sink. Pairs with a non-string key are dropped.
// Note that the standard library's slog.Logger already implements slotdb.Logger directly.
//
// Example with zap:
//
//	import (
//	    "slotdb"
//	    "slotdb/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    db, err := slotdb.Open(
//	        slotdb.WithPoolSize(4096),
//	        slotdb.WithLogger(logger.NewZap(zapLogger, "db", "orders")),
//	    )
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer db.Close()
//
//	    tid, err := db.OpenTable("orders.db")
//	}
package logger
