package main

import (
	"fmt"
	"os"

	"github.com/metinatakli/seat-booking/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "booking-api: %v\n", err)
		os.Exit(1)
	}
}
