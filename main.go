package main

import "github.com/imec-int/monument-plwd-sub001/cmd"

func main() {
	cmd.Execute()
}
