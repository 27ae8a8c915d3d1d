// Public domain.

package main

import "github.com/soniakeys/transitfit/internal/tfprog"

func main() {
	tfprog.Main()
}
