// Command sgctl inspects and edits settings stored behind a gateway from the
// command line. The provider, table, and schema come from the environment:
//
//	SG_PROVIDER_DSN  provider DSN (default memory://)
//	SG_TABLE         gateway/table name (default settings)
//	SG_DEFAULTS_FILE JSON file mapping dotted paths to default values
//	SG_LOG_LEVEL     DEBUG, INFO, WARN, or ERROR
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	settingsgateway "github.com/Favna/settings-gateway"
	_ "github.com/Favna/settings-gateway/providers"
)

func main() {
	settingsgateway.ConfigureLogging()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("sgctl: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: sgctl <command> [args]

commands:
  get <id> [path]          print settings for an entity, or one value
  set <id> <path> <value>  update one value (value is JSON, or a bare string)
  reset <id> [path...]     reset paths (or everything) to schema defaults
  del <id>                 destroy an entity's stored settings
  keys                     list stored entity ids
  dump                     print every stored row`)
}

func run(ctx context.Context, command string, args []string) error {
	gateway, err := buildGatewayFromEnv()
	if err != nil {
		return err
	}
	defer gateway.Shutdown(ctx)
	if err := gateway.Init(ctx); err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}

	switch command {
	case "get":
		return runGet(ctx, gateway, args)
	case "set":
		return runSet(ctx, gateway, args)
	case "reset":
		return runReset(ctx, gateway, args)
	case "del":
		return runDel(ctx, gateway, args)
	case "keys":
		return runKeys(ctx, gateway)
	case "dump":
		return runDump(ctx, gateway)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func buildGatewayFromEnv() (*settingsgateway.Gateway, error) {
	dsn := strings.TrimSpace(os.Getenv("SG_PROVIDER_DSN"))
	if dsn == "" {
		dsn = "memory://"
	}
	table := strings.TrimSpace(os.Getenv("SG_TABLE"))
	if table == "" {
		table = "settings"
	}
	schema, err := buildSchemaFromEnv()
	if err != nil {
		return nil, err
	}
	provider, err := settingsgateway.BuildProviderFromDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}
	return settingsgateway.NewGateway(table, schema, provider)
}

func buildSchemaFromEnv() (*settingsgateway.Schema, error) {
	schema := settingsgateway.NewSchema()
	file := strings.TrimSpace(os.Getenv("SG_DEFAULTS_FILE"))
	if file == "" {
		return schema, nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read defaults file: %w", err)
	}
	defaults := map[string]any{}
	if err := json.Unmarshal(raw, &defaults); err != nil {
		return nil, fmt.Errorf("parse defaults file %s: %w", file, err)
	}
	for path, value := range defaults {
		if err := schema.Add(path, value); err != nil {
			return nil, fmt.Errorf("defaults file %s: %w", file, err)
		}
	}
	return schema, nil
}

func runGet(ctx context.Context, gateway *settingsgateway.Gateway, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("get expects <id> [path]")
	}
	settings := gateway.Get(args[0])
	if _, err := settings.Sync(ctx); err != nil {
		return err
	}
	if len(args) == 2 {
		value, ok := settings.Get(args[1])
		if !ok {
			return fmt.Errorf("unknown path %q", args[1])
		}
		return printJSON(value)
	}
	return printJSON(settings.Snapshot())
}

func runSet(ctx context.Context, gateway *settingsgateway.Gateway, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("set expects <id> <path> <value>")
	}
	settings := gateway.Get(args[0])
	results, err := settings.Update(ctx, settingsgateway.UpdatePair{
		Path:  args[1],
		Value: parseValue(args[2]),
	})
	if err != nil {
		return err
	}
	for _, result := range results {
		fmt.Printf("%s: %v -> %v\n", result.Entry.Path, result.Previous, result.Next)
	}
	return nil
}

func runReset(ctx context.Context, gateway *settingsgateway.Gateway, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("reset expects <id> [path...]")
	}
	settings := gateway.Get(args[0])
	results, err := settings.Reset(ctx, args[1:]...)
	if err != nil {
		return err
	}
	for _, result := range results {
		fmt.Printf("%s: %v -> %v\n", result.Entry.Path, result.Previous, result.Next)
	}
	return nil
}

func runDel(ctx context.Context, gateway *settingsgateway.Gateway, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("del expects <id>")
	}
	settings := gateway.Get(args[0])
	if _, err := settings.Destroy(ctx); err != nil {
		return err
	}
	fmt.Printf("destroyed %s/%s\n", gateway.Name(), args[0])
	return nil
}

func runKeys(ctx context.Context, gateway *settingsgateway.Gateway) error {
	keys, err := gateway.Provider().GetKeys(ctx, gateway.Name())
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func runDump(ctx context.Context, gateway *settingsgateway.Gateway) error {
	rows, err := gateway.Provider().GetAll(ctx, gateway.Name(), nil)
	if err != nil {
		return err
	}
	dump := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		dump[row.ID] = row.Data
	}
	return printJSON(dump)
}

// parseValue treats the argument as JSON when it parses, otherwise as a bare
// string, so `sgctl set guild prefix !` works without quoting.
func parseValue(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw
	}
	return value
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
