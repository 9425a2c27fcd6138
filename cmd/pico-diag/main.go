// cmd/pico-diag/main.go
package main

import (
	"context"
	"runtime"
	"time"

	"smartbin-go/bus"
	"smartbin-go/services/hal/platform"
	"smartbin-go/services/system"
)

// Firmware build with bus tracing: every monitor message is echoed to the
// USB console together with runtime memory figures.

func printTopicWith(prefix string, t bus.Topic) {
	print(prefix)
	print(" ")
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			print("/")
		}
		switch v := t.At(i).(type) {
		case string:
			print(v)
		case int:
			print(v)
		default:
			print("?")
		}
	}
	println()
}

func main() {
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[diag] board …")
	board, err := platform.Default()
	if err != nil {
		println("[diag] board error:", err.Error())
		return
	}

	println("[diag] starting services …")
	sys, err := system.Start(ctx, board, system.Options{})
	if err != nil {
		println("[diag] start error:", err.Error())
		return
	}

	ui := sys.Bus.NewConnection("diag")
	mon := ui.Subscribe(bus.T("monitor", "#"))
	go func() {
		for m := range mon.Channel() {
			printTopicWith("[diag] <-", m.Topic)
		}
	}()

	status := bus.T("monitor", "control", "status")
	for {
		time.Sleep(10 * time.Second)
		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if reply, err := ui.RequestWait(rctx, ui.NewMessage(status, nil, false)); err != nil {
			println("[diag] status error:", err.Error())
		} else {
			printTopicWith("[diag] status reply on", reply.Topic)
		}
		cancel()
		printMem()
	}
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
// Uses builtin println to avoid fmt overhead/allocations.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"heapSys:", uint32(ms.HeapSys),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
