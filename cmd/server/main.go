package main

import "clinicbook/internal/app/server"

func main() {
	server.Run()
}
