package main

import (
	"os"

	"github.com/fkie-cad/ahkdump/app"
)

func main() {
	app.RunApp(os.Args)
}
