// Command mfgstats runs the dashboard views over a workbook from the shell
// and prints them as JSON.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run mfgstats")
	}
}
