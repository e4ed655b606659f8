// Command sqlc-explain compiles one of a handful of built-in demo
// statements and prints the resulting instruction listing, the way
// SQLite's own EXPLAIN surfaces a compiled program for inspection.
//
// This package intentionally does not parse SQL text: the lexer/parser
// producing the AST is an external collaborator of the compiler this
// tool explains (see spec §1), so the demos below stand in for
// already-parsed statements rather than reimplementing a parser here.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"go.corvidb.dev/compiler"
)

var CLI struct {
	List    ListCmd    `cmd:"" help:"List the names of the built-in demo statements"`
	Explain ExplainCmd `cmd:"" help:"Compile a demo statement and print its instruction listing"`
}

type ListCmd struct{}

func (c *ListCmd) Run() error {
	for _, name := range demoNames() {
		fmt.Println(name)
	}
	return nil
}

type ExplainCmd struct {
	Name string `arg:"" help:"name of a built-in demo statement (see 'list')"`
}

func (c *ExplainCmd) Run() error {
	d, ok := demos[c.Name]
	if !ok {
		return fmt.Errorf("no such demo %q; run 'sqlc-explain list' to see available names", c.Name)
	}
	out, err := sqlc.CompileExplain(d.catalog(), d.stmt, d.sql, sqlc.Options{})
	if err != nil {
		return err
	}
	fmt.Println("--", d.sql)
	fmt.Print(out)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqlc-explain"),
		kong.Description("Compile built-in demo SQL statements and print the resulting VDBE program"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
