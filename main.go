package main

import (
	"log"

	"github.com/Rishu22889/ai-apply/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
