// Command ellexfn lists the types in a set of packages that implement one of
// the ellex extension interfaces. It is a development aid for keeping
// registration tables complete: run it against a package of optimization
// passes and paste the output into the pipeline setup.
//
//	ellexfn -iface Pass ./...
package main

import (
	"flag"
	"fmt"
	"go/token"
	"go/types"
	"os"
	"regexp"
	"sort"

	"golang.org/x/tools/go/packages"
)

func main() {
	var match, ignore string
	var ellexpath, iface string
	flag.StringVar(&match, "match", ".", "include only types matching this regular expression")
	flag.StringVar(&ignore, "ignore", "$^", "exclude types matching this regular expression")
	flag.StringVar(&ellexpath, "ellex", "github.com/zephyrtronium/ellex", "import path for package ellex")
	flag.StringVar(&iface, "iface", "Pass", "interface the listed types must implement")
	flag.Parse()
	mre, err := regexp.Compile(match)
	if err != nil {
		fail("error compiling match:", err)
	}
	ire, err := regexp.Compile(ignore)
	if err != nil {
		fail("error compiling ignore:", err)
	}

	fset := token.NewFileSet()
	config := packages.Config{Mode: packages.NeedTypes | packages.NeedSyntax | packages.NeedImports, Fset: fset}
	pkgs, err := packages.Load(&config, append([]string{ellexpath}, flag.Args()...)...)
	if err != nil {
		fail("error loading packages:", err)
	}
	in, pkgs := getInterface(pkgs, iface)
	var results []string
	for _, pkg := range pkgs {
		results = append(results, find(pkg.Types.Scope(), in, mre, ire)...)
	}
	sort.Strings(results)
	for _, name := range results {
		fmt.Println(name)
	}
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

// getInterface resolves the named interface in the first loaded package and
// returns it with the remaining packages to scan.
func getInterface(pkgs []*packages.Package, name string) (*types.Interface, []*packages.Package) {
	pkg := pkgs[0].Types
	r := pkg.Scope().Lookup(name)
	if r == nil {
		fail(pkg.Name(), "has no definition of", name)
	}
	in, ok := r.Type().Underlying().(*types.Interface)
	if !ok {
		fail(name, "is not an interface")
	}
	if len(pkgs) > 1 {
		return in, pkgs[1:]
	}
	return in, pkgs
}

// find returns the qualified names of the scope's types that implement the
// interface, directly or through a pointer receiver.
func find(scope *types.Scope, in *types.Interface, mre, ire *regexp.Regexp) []string {
	var results []string
	for _, name := range scope.Names() {
		obj, ok := scope.Lookup(name).(*types.TypeName)
		if !ok {
			continue
		}
		if !mre.MatchString(name) || ire.MatchString(name) {
			continue
		}
		t := obj.Type()
		if types.Implements(t, in) || types.Implements(types.NewPointer(t), in) {
			results = append(results, types.TypeString(t, nil))
		}
	}
	return results
}
