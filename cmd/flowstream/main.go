// Command flowstream runs a flowstream event pipeline.
//
// Usage:
//
//	flowstream serve --config flowstream.yaml
//	flowstream ingest events.ndjson
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
