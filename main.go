// =============================================================================
// Cash Sales IIF Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   cashiif process       - Convert every statement in the input directory
//   cashiif validate      - Validate configuration files without processing
//   cashiif version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Conversion pipeline and configuration
//   - pkg/           : File handling utilities
//   - configs/       : Per-export profile YAML files
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/cash-iif-converter/cmd"
)

func main() {
	cmd.Execute()
}
