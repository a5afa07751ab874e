package main

import "github.com/MeKo-Tech/zonat/internal/cmd"

func main() {
	cmd.Execute()
}
