// Command dashctl is the terminal front end of the asset dashboard client:
// it logs in, keeps the session in the configured token store and issues
// authenticated requests against the backend.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := execute(context.Background(), os.Args[1:], os.LookupEnv, os.Stdin, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "dashctl: %v\n", err)
		os.Exit(1)
	}
}
