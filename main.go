package main

import "github.com/yiannist/clusterfit/cmd"

func main() {
	cmd.Execute()
}
