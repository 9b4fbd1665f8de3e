package main

import (
	"os"

	legalconnectcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect"
)

func main() {
	cmd := legalconnectcmder.NewLegalConnectCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
