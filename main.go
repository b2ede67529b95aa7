package main

import (
	"log"

	"collabhub/app"
)

func main() {
	server := app.NewServer()
	log.Fatal(server.Start(""))
}
