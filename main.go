package main

import "github.com/qrave1/MeshRoom/cmd"

func main() {
	cmd.Execute()
}
