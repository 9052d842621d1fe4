// main.go
package main

import "github.com/markb/ripple/cmd"

func main() {
	cmd.Execute()
}
