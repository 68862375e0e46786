package main

import (
	cmd "github.com/cozy-creator/theme-manager/cmd/themes"
)

func main() {
	cmd.Execute()
}
