package main

import (
	"github.com/drgolem/roomcast/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	Execute()
}
