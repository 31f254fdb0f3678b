// Package prompt reads validated answers from an interactive operator.
// Every question is repeated until the answer is valid; only end of input
// stops it.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// New builds a prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Printf writes operator-facing text.
func (p *Prompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Println writes an operator-facing line.
func (p *Prompter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

// Ask prints question and returns the trimmed answer. It returns io.EOF when
// input is exhausted.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		fmt.Fprintln(p.out)
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// IntInRange asks until a whole number in [lo, hi] is given.
func (p *Prompter) IntInRange(question string, lo, hi int) (int, error) {
	for {
		answer, err := p.Ask(question)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= lo && n <= hi {
			return n, nil
		}
		p.Println("Invalid selection")
	}
}

// RowCount asks how many of total rows to seed. A blank answer means all of
// them and 0 means none.
func (p *Prompter) RowCount(total int) (int, error) {
	for {
		answer, err := p.Ask("\tEnter the number of rows you want to seed (To seed all enter nothing): ")
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return total, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 0 && n <= total {
			return n, nil
		}
		p.Printf("Input must be a whole number between 0 and %d!\n", total)
	}
}

// YesNo asks a y/n question. Answers are case-insensitive.
func (p *Prompter) YesNo(question string) (bool, error) {
	for {
		answer, err := p.Ask(question + " (y/n): ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.Println("Invalid Selection")
	}
}

// Choose prints a numbered list of options and returns the 1-based choice.
func (p *Prompter) Choose(title string, options []string) (int, error) {
	if title != "" {
		p.Println(title)
	}
	for i, opt := range options {
		p.Printf("\t%d. %s\n", i+1, opt)
	}
	return p.IntInRange("Selection: ", 1, len(options))
}
