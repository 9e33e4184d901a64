package main

import "entrymap/cmd"

func main() {
	cmd.Execute()
}
