package main

import "github.com/meysamhadeli/docai/cmd"

func main() {
	cmd.Execute()
}
