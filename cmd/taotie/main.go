// Command taotie is an interactive shell for exploring CSV, JSON, Parquet,
// and Postgres datasets.
package main

import (
	"os"

	"taotie/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
