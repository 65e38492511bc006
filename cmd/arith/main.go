package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/etscrivner/arith"
	"github.com/etscrivner/arith/runtime"
	"github.com/etscrivner/arith/vm"
)

var errColor = color.New(color.FgRed)

func main() {
	app := &cli.Command{
		Name:  "arith",
		Usage: "compile and evaluate shell arithmetic expressions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "decomma",
				Usage: "treat ',' before a digit as the decimal point",
			},
			&cli.BoolFlag{
				Name:  "nounset",
				Usage: "error on use of never-set variables",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "dis",
				Usage:     "Compile an expression and print its bytecode listing",
				ArgsUsage: "<expression>",
				Action:    disassemble,
			},
			{
				Name:   "repl",
				Usage:  "Interactive evaluation loop",
				Action: func(ctx context.Context, cmd *cli.Command) error { return repl(newShell(cmd)) },
			},
			{
				Name:   "funcs",
				Usage:  "List the registered math functions",
				Action: listFuncs,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return repl(newShell(cmd))
			}
			shp := newShell(cmd)
			vars := runtime.NewVars(shp)
			for _, expr := range args {
				v, err := arith.Eval(shp, expr, vars.Oracle, runtime.EmodeReport)
				if err != nil {
					return err
				}
				fmt.Println(v)
			}
			return nil
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newShell(cmd *cli.Command) *runtime.Shell {
	shp := runtime.NewShell()
	shp.DeComma = cmd.Bool("decomma")
	shp.NoUnset = cmd.Bool("nounset")
	return shp
}

func disassemble(ctx context.Context, cmd *cli.Command) error {
	expr := strings.Join(cmd.Args().Slice(), " ")
	if expr == "" {
		return errors.New("dis: expression required")
	}
	shp := newShell(cmd)
	vars := runtime.NewVars(shp)
	prog, err := arith.Compile(shp, expr, vars.Oracle, runtime.EmodeReport)
	if err != nil {
		return err
	}
	lines, err := vm.Disasm(prog)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"OFFSET", "OPCODE", "OPERANDS"})
	for _, line := range lines {
		table.Append([]string{
			strconv.Itoa(line.Offset),
			line.Op.String(),
			line.Text,
		})
	}
	table.Render()
	fmt.Printf("stack depth %d, %d bytes\n", prog.StackSize, len(prog.Code))
	return nil
}

func listFuncs(ctx context.Context, cmd *cli.Command) error {
	shp := newShell(cmd)
	for _, name := range shp.Math.Names() {
		entry := shp.Math.Lookup(name)
		fmt.Printf("%-12s %d args\n", name, entry.Arity())
	}
	return nil
}

// repl reads expressions one line at a time against a persistent variable
// table, printing each result or a colored diagnostic.
func repl(shp *runtime.Shell) error {
	rl, err := readline.New("arith> ")
	if err != nil {
		return err
	}
	defer rl.Close()
	vars := runtime.NewVars(shp)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF || err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		v, rest, err := arith.Strval(shp, line, vars.Oracle, runtime.EmodeReport)
		if err != nil {
			errColor.Fprintln(os.Stderr, err)
			continue
		}
		if rest != "" {
			errColor.Fprintf(os.Stderr, "trailing characters: %q\n", rest)
			continue
		}
		fmt.Println(v)
	}
}
