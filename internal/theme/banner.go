package theme

import (
	"fmt"
)

// Banner returns the convoyset startup banner.
func Banner() string {
	const cyan = "\033[36m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		yellow + "  ══════════  CONVOYSET  ══════════\n" + reset +
		cyan + "      ____            ____\n" + reset +
		cyan + "   __/|___|__      __/|___|__\n" + reset +
		cyan + "  |  _______ |----|  _______ |\n" + reset +
		cyan + "  '-(_)---(_)-'  '-(_)---(_)-'\n" + reset +
		"   convoy protest dataset tooling\n"
	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
