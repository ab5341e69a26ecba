// This tool loads a PDF file, reports what the resolver found, and
// optionally rewrites it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/benoitkugler/pdfgraph"
	"github.com/benoitkugler/pdfgraph/writer"
)

func check(err error) {
	if err != nil {
		fmt.Println("fatal error:", err)
		os.Exit(1)
	}
}

func main() {
	password := flag.String("password", "", "user or owner password, if the document is encrypted")
	out := flag.String("out", "", "write the (possibly rewritten) document to this path")
	incremental := flag.Bool("incremental", false, "append an incremental update instead of a full rewrite")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("usage: pdfgraph [flags] input.pdf")
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	check(err)

	var passwords []string
	if *password != "" {
		passwords = []string{*password}
	}
	doc, err := pdfgraph.Load(data, pdfgraph.LoadOptions{Passwords: passwords})
	check(err)

	root, err := doc.Root()
	check(err)
	typ, _ := root.Get("Type")
	fmt.Printf("root object: %v\n", typ)

	if reason, ok := doc.CanSaveIncrementally(); !ok {
		fmt.Printf("incremental save blocked: %s\n", reason)
	}
	for _, w := range doc.Warnings() {
		fmt.Println("warning:", w)
	}

	if *out == "" {
		return
	}

	var rewritten []byte
	if *incremental {
		rewritten, err = doc.SaveIncremental(writer.Options{})
	} else {
		rewritten, err = doc.Save(writer.Options{})
	}
	check(err)
	check(os.WriteFile(*out, rewritten, 0o644))
}
