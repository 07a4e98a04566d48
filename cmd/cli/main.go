// tflog - Terraform Log Analyzer
//
// tflog parses the JSON-line logs Terraform writes with TF_LOG=json and
// reports levels, plan/apply phases, time range and provider request timing.
package main

import (
	"os"

	"github.com/ccollicutt/tflog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
