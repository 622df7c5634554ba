// Command server runs the WBS HTTP API for container deployments. PORT
// overrides server.addr; everything else comes from wbs.yaml and WBS_* vars.
package main

import (
	"os"

	"siteplan/internal/cli"
)

func main() {
	args := []string{"serve"}
	if port := os.Getenv("PORT"); port != "" {
		args = append(args, "--addr", ":"+port)
	}
	if err := cli.Run(args); err != nil {
		os.Exit(1)
	}
}
