package main

import (
	"fmt"
	"os"

	"gatekeeper/internal/config"
)

func main() {
	fmt.Println("# Gatekeeper Environment Variables")
	fmt.Println()
	fmt.Println("Gatekeeper supports configuration via environment variables.")
	fmt.Println("Environment variables override values from the configuration file.")
	fmt.Println()
	fmt.Println("## Available Environment Variables")
	fmt.Println()

	cfg := &config.Config{}
	examples := config.EnvExample(cfg)

	for _, example := range examples {
		fmt.Printf("- `%s`\n", example)
	}

	fmt.Println()
	fmt.Println("## Examples")
	fmt.Println()
	fmt.Println("```bash")
	fmt.Println("# Override the listen port")
	fmt.Println("export GATEKEEPER_GATEKEEPER_SERVER_PORT=9000")
	fmt.Println()
	fmt.Println("# Tighten the per-IP quota")
	fmt.Println("export GATEKEEPER_GATEKEEPER_RATELIMIT_IP_RATE=50")
	fmt.Println("export GATEKEEPER_GATEKEEPER_RATELIMIT_IP_BURST=60")
	fmt.Println()
	fmt.Println("# Protect the management API")
	fmt.Println("export GATEKEEPER_GATEKEEPER_MANAGEMENT_AUTHTOKEN=change-me")
	fmt.Println()
	fmt.Println("# Run with env vars")
	fmt.Println("./gatekeeper -config gatekeeper.yaml")
	fmt.Println("```")

	os.Exit(0)
}
