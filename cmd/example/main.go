package main

import (
	"os"

	"github.com/raphi011/hookrun"

	_ "github.com/raphi011/hookrun/internal/exampletests"
	_ "github.com/raphi011/hookrun/plugin"
)

func main() {
	h := hookrun.New()

	os.Exit(h.Main(os.Args))
}
