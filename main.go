package main

import "townconnect-backend/cmd"

func main() {
	cmd.Run()
}
