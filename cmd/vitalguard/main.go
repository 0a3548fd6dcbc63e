// Command vitalguard trains, serves and queries the vital-sign anomaly model.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
