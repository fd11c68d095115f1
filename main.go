package main

import (
	"fmt"
	"os"

	"fjacquet/statement-import/cmd/banks"
	"fjacquet/statement-import/cmd/detect"
	"fjacquet/statement-import/cmd/imports"
	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/cmd/serve"
	"fjacquet/statement-import/cmd/validate"
	"fjacquet/statement-import/internal/config"
)

func init() {
	// Load .env before anything reads the environment.
	config.LoadEnv()

	root.Init()

	root.Cmd.AddCommand(serve.Cmd)
	root.Cmd.AddCommand(detect.Cmd)
	root.Cmd.AddCommand(validate.Cmd)
	root.Cmd.AddCommand(imports.Cmd)
	root.Cmd.AddCommand(banks.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
