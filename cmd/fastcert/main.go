package main

import (
	"fmt"
	"os"

	"github.com/fastcertdev/fastcert"

	_ "github.com/fastcertdev/fastcert/ca"
	_ "github.com/fastcertdev/fastcert/cert"
	_ "github.com/fastcertdev/fastcert/trust"
)

func main() {
	if err := fastcert.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
