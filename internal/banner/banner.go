// Package banner renders the CLI startup banner.
package banner

import "fmt"

const art = `
   ____  _________ _____ ___  ____  / /__
  / __ \/ ___/ __ '/ __ '__ \/ __ \/ / _ \
 / /_/ (__  ) /_/ / / / / / / /_/ / /  __/
 \__, /____/\__,_/_/ /_/ /_/ .___/_/\___/
   /_/                    /_/
`

// Banner returns the ASCII banner followed by the version line.
func Banner(version string) string {
	return fmt.Sprintf("%s\n  quotation span sampler %s\n\n", art, version)
}
