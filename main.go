package main

import (
	"context"
	"time"

	"smartbin-go/services/hal/platform"
	"smartbin-go/services/system"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	board, err := platform.Default()
	if err != nil {
		halt("board: " + err.Error())
	}
	if _, err := system.Start(context.Background(), board, system.Options{}); err != nil {
		halt("start: " + err.Error())
	}
	select {}
}

func halt(msg string) {
	for {
		println(msg)
		time.Sleep(5 * time.Second)
	}
}
