// acclog - access log parser and filter
//
// acclog turns timestamped access-log lines with a header block and a JSON
// body into structured records, and selects the records that match a set of
// criteria.
package main

import (
	"os"

	"github.com/ccollicutt/acclog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
