package sandbox

import (
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// =============================================================================
// YAEGI INTERPRETER - IN-PROCESS PLUGIN EVALUATION
// =============================================================================
// Plugin entry sources are interpreted at runtime instead of compiled with
// `go build`. Interpretation cannot hang on toolchain or network issues, has
// no dynamic-linking problems, and keeps the import surface restricted to an
// allow-listed stdlib subset.

// allowedPackages is the stdlib subset plugin sources may import.
// Filesystem, network, exec, and unsafe packages are deliberately absent.
var allowedPackages = map[string]bool{
	"strings":         true,
	"strconv":         true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
	"errors":          true,
}

// ConstructorName is the zero-argument constructor every plugin entry source
// must define.
const ConstructorName = "main.NewPlanner"

// evalEntry interprets a plugin entry source and calls its NewPlanner
// constructor, returning the constructed instance. Panics inside plugin code
// are recovered and reported as errors.
func evalEntry(source string) (instance interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("plugin panicked during import: %v", r)
		}
	}()

	if err := validateImports(source); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}

	if _, err := i.Eval(wrapCode(source)); err != nil {
		return nil, fmt.Errorf("plugin evaluation failed: %w", err)
	}

	ctor, err := i.Eval(ConstructorName)
	if err != nil {
		return nil, fmt.Errorf("NewPlanner constructor not found: %w", err)
	}

	newPlanner, ok := ctor.Interface().(func() interface{})
	if !ok {
		return nil, fmt.Errorf("NewPlanner has incorrect signature (expected: func() interface{})")
	}

	return newPlanner(), nil
}

// validateImports checks that the source only imports allowed packages.
func validateImports(source string) error {
	var imports []string

	inImportBlock := false
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "import (") {
			inImportBlock = true
			continue
		}
		if inImportBlock && strings.HasPrefix(trimmed, ")") {
			inImportBlock = false
			continue
		}

		if inImportBlock {
			if pkg := strings.Trim(trimmed, `"`); pkg != "" {
				imports = append(imports, pkg)
			}
		} else if strings.HasPrefix(trimmed, "import ") {
			pkg := strings.TrimPrefix(trimmed, "import ")
			pkg = strings.Trim(pkg, `"`)
			imports = append(imports, pkg)
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if !allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}

	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports detected: %v", forbidden)
	}

	return nil
}

// wrapCode wraps the entry source in a main package if needed.
func wrapCode(source string) string {
	if strings.Contains(source, "package main") {
		return source
	}
	return "package main\n\n" + source
}
