package main

import "library-services/cmd"

func main() {
	cmd.Execute()
}
