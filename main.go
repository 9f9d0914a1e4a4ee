package main

import "github.com/thiswillbeyourgithub/iroh-send/cmd"

func main() {
	cmd.Execute()
}
