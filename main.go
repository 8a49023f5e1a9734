package main

import "github.com/labglue/labglue/cmd"

func main() {
	cmd.Execute()
}
