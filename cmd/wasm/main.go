//go:build js && wasm

// Command wasm exposes the traffic engine to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runSimulation(jsonString[, yamlConfig]) -> jsonString
//
// The input and output are JSON-encoded SimulationInput and SimulationLog,
// the same contract the CLI run subcommand uses. The optional second
// argument is a YAML document laid over the default configuration.
package main

import (
	"syscall/js"

	"github.com/cxd309/traffic-engine/internal/config"
	"github.com/cxd309/traffic-engine/internal/engine"
)

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	select {} // keep the WASM module alive until the page is closed
}

func runSimulation(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return failure("no input provided")
	}

	cfg := config.Default()
	if len(args) > 1 && args[1].Type() == js.TypeString {
		var err error
		if cfg, err = config.Parse([]byte(args[1].String())); err != nil {
			return failure(err.Error())
		}
	}

	result, err := engine.RunJSONWithConfig(args[0].String(), cfg)
	if err != nil {
		return failure(err.Error())
	}
	return result
}

func failure(msg string) map[string]any {
	return map[string]any{"error": msg}
}
