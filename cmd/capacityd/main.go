// cmd/capacityd/main.go
package main

import "capacity-engine/internal/cli"

func main() {
	cli.Execute()
}
