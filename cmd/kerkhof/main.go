package main

import (
	"os"

	"horse.fit/kerkhof/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
