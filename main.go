package main

import "github.com/Layr-Labs/tokenfarm/cmd"

func main() {
	cmd.Execute()
}
