package ir

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

func blockName(b Block) string { return fmt.Sprintf("b%d", b.ID()) }

func blockHeader(b Block) string {
	if j, ok := b.(*JoinBlock); ok {
		return fmt.Sprintf("%s (join %s)", blockName(b), j.Env)
	}
	return blockName(b)
}

// joinFor returns the join decorating b, if any, so that proxied blocks are
// labelled as joins too.
func (f *Func) joinFor(b Block) Block {
	for _, j := range f.Joins {
		if j.Inner() != nil && j.Equal(b) {
			return j
		}
	}
	return b
}

func (f *Func) signature() string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	ret := "void"
	if f.HasResult {
		ret = "int"
	}
	return fmt.Sprintf("%s %s(%s)", ret, f.Name, strings.Join(names, ", "))
}

// WriteText writes a listing of every block of f in creation order.
func (f *Func) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s {\n", f.signature())
	for _, b := range f.Blocks {
		fmt.Fprintf(bw, "%s:\n", blockHeader(f.joinFor(b)))
		for i := b.FirstInstruction(); i != nil; i = i.Next() {
			fmt.Fprintf(bw, "\t%s\n", i)
		}
		if s := b.Branch(); s != nil {
			fmt.Fprintf(bw, "\tbranch %s\n", blockName(s))
		}
		if s := b.Fail(); s != nil {
			fmt.Fprintf(bw, "\tfail %s\n", blockName(s))
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func (p *Program) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "class %s\n", p.Class); err != nil {
		return err
	}
	for _, f := range p.Funcs {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if err := f.WriteText(w); err != nil {
			return err
		}
	}
	return nil
}

func dotEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "'", `\'`)
	return r.Replace(s)
}

// WriteDot renders the program as one Graphviz digraph with a cluster per
// procedure. Every block is visited once, so loops terminate.
func (p *Program) WriteDot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph \"%s\" {\n", dotEscape(p.Class))
	fmt.Fprintln(bw, "\tnode [shape=box, fontname=\"monospace\"];")
	for _, f := range p.Funcs {
		f.writeDot(bw)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func (f *Func) writeDot(w io.Writer) {
	node := func(b Block) string { return fmt.Sprintf("%s_b%d", f.Name, b.ID()) }
	fmt.Fprintf(w, "\tsubgraph \"cluster_%s\" {\n", f.Name)
	fmt.Fprintf(w, "\t\tlabel=\"%s\";\n", dotEscape(f.signature()))

	drawn := make(map[int]bool)
	var edges []string
	var visit func(b Block)
	visit = func(b Block) {
		if b == nil || drawn[b.ID()] {
			return
		}
		drawn[b.ID()] = true
		var label strings.Builder
		label.WriteString(blockHeader(f.joinFor(b)))
		label.WriteString(`\l`)
		for i := b.FirstInstruction(); i != nil; i = i.Next() {
			label.WriteString(dotEscape(i.String()))
			label.WriteString(`\l`)
		}
		fmt.Fprintf(w, "\t\t%s [label=\"%s\"];\n", node(b), label.String())
		if s := b.Branch(); s != nil {
			edges = append(edges, fmt.Sprintf("\t\t%s -> %s [label=\"branch\"];\n", node(b), node(s)))
		}
		if s := b.Fail(); s != nil {
			edges = append(edges, fmt.Sprintf("\t\t%s -> %s [label=\"fail\", style=dashed];\n", node(b), node(s)))
		}
		visit(b.Branch())
		visit(b.Fail())
	}
	visit(f.Entry)
	// blocks unreachable from the entry are still part of the procedure
	for _, b := range f.Blocks {
		visit(b)
	}
	for _, e := range edges {
		io.WriteString(w, e)
	}
	fmt.Fprintln(w, "\t}")
}
