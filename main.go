package main

import "github.com/Mmx233/FSearch/cmd"

func main() {
	cmd.Execute()
}
