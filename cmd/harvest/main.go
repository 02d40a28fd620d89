package main

import (
	"harvest-backend/cmd/harvest/commands"
	"harvest-backend/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
