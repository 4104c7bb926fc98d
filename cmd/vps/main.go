// Command vps runs the demo site. Real sites build their own command
// around pkg/cli with their page importer.
package main

import (
	"os"

	"github.com/vango-dev/vps/internal/demo"
	"github.com/vango-dev/vps/pkg/cli"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	site := cli.Site{Files: demo.Files(), Importer: demo.Importer()}
	os.Exit(cli.Execute(site, cli.Build{Version: version, Commit: commit, Date: date}))
}
