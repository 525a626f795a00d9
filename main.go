package main

import (
	"github.com/praetorian-inc/quasar/cmd"
)

func main() {
	cmd.Execute()
}
