package main

import "github.com/example/bookingd/cmd"

func main() {
	cmd.Execute()
}
