package worker

import (
	"log"
	"os"
	"strings"
)

// Verbose relay-scheduling logs, enabled with NYAYACHAT_WORKER_DEBUG=1.
// Off by default; dispatch decisions are too chatty for normal runs.
var workerDebugEnabled = strings.EqualFold(os.Getenv("NYAYACHAT_WORKER_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if workerDebugEnabled {
		log.Printf(format, args...)
	}
}
