// Command pricectl runs the pricing, SKU and fallback shipping logic offline,
// without partner credentials.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
