package main

import "github.com/statbio/prsinfer/cmd"

// TODO: checkpoint resume should also restore the generator state so a
//       resumed chain is bit-identical to an uninterrupted one

func main() {
	cmd.Execute()
}
