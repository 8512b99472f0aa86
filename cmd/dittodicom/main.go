package main

import (
	"context"

	"github.com/marmos91/dittodicom/cmd/dittodicom/cli"
)

func main() {
	cli.ExecuteContext(context.Background())
}
