// Command mdchunk splits Markdown and other documents into chunks from the
// command line.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
