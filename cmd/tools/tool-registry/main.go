// cmd/tools/tool-registry/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"agent-demo-webhooks/pkg/registry"
)

func main() {
	printCmd := flag.NewFlagSet("print", flag.ExitOnError)
	writeCmd := flag.NewFlagSet("write", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	writePath := writeCmd.String("path", "configs/tool-registry.json", "Path to write the registry file")
	force := writeCmd.Bool("force", false, "Overwrite an existing file")
	validatePath := validateCmd.String("path", "configs/tool-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "print":
		printCmd.Parse(os.Args[2:])
		data, err := json.MarshalIndent(registry.Default(), "", "  ")
		if err != nil {
			fmt.Printf("Error encoding registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))

	case "write":
		writeCmd.Parse(os.Args[2:])
		if _, err := os.Stat(*writePath); err == nil && !*force {
			fmt.Printf("Error: %s already exists (use -force to overwrite)\n", *writePath)
			os.Exit(1)
		}
		if err := registry.SaveRegistry(registry.Default(), *writePath); err != nil {
			fmt.Printf("Error writing registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote tool registry to %s\n", *writePath)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Failed to load registry: %v\n", err)
			os.Exit(1)
		}
		if err := reg.Validate(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		if missing := reg.Missing(); len(missing) > 0 {
			fmt.Printf("Warning: registry does not define %v\n", missing)
		}
		fmt.Printf("Registry validation passed. Found %d tools.\n", len(reg.Tools))

	case "help":
		fallthrough
	default:
		help()
	}
}

func help() {
	fmt.Print(`
Usage: tool-registry <command> [flags]

Commands:
  print     Print the default persona tool definitions
  write     Write the default definitions to a file
  validate  Validate a registry file
  help      Show this help message

Examples:
  tool-registry print
  tool-registry write -path configs/tool-registry.json -force
  tool-registry validate -path configs/tool-registry.json

Use 'tool-registry <command> -h' for more information about a command.
` + "\n")
}
