// Command media-inliner rewrites legacy-CDN media references in a CMS's
// content to locally (or object-) stored copies.
package main

import (
	"fmt"
	"os"

	"github.com/JakeFAU/media-inliner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
