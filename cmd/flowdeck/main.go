package main

import (
	"log"

	"github.com/flowdeck/flowdeck/cmd/flowdeck/deckrun"
)

func main() {
	if err := deckrun.Run(); err != nil {
		log.Fatal(err)
	}
}
