package main

import (
	"context"
	"fmt"
	"os"

	"github.com/photon-img/photon/cmd/photon"
)

func main() {
	if err := photon.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
