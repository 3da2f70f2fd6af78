package main

import "github.com/user/scanfold/cmd"

func main() {
	cmd.Execute()
}
