package main

import (
	"flag"
	_ "net/http/pprof" // registers the /debug/pprof handlers
)

func main() {
	di := flag.String("di", "dig", "how dependencies are wired: dig | manual")
	flag.Parse()

	switch *di {
	case "manual":
		startManual()
	default:
		startWithDig()
	}
}
