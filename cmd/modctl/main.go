package main

import "github.com/nfrund/modfinder/cmd/modctl/cmd"

func main() {
	cmd.Execute()
}
