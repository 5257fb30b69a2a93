package main

import (
	"os"

	"github.com/computerscienceiscool/rgrun/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
