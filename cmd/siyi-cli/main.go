// Command siyi-cli sends one-shot commands to a SIYI gimbal camera and
// prints the reply.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "siyi-cli:", err)
		os.Exit(1)
	}
}
