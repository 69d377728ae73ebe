package main

import (
	"github.com/poletool/pole/src/polecmd"
)

func main() {
	polecmd.Main()
}
