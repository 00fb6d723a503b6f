package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/leapstack-labs/leapgrid/internal/cli/config"
	sharedcfg "github.com/leapstack-labs/leapgrid/internal/config"
	"github.com/leapstack-labs/leapgrid/pkg/core"
)

// ConfigField is one key of leapgrid.yaml.
type ConfigField struct {
	Key         string
	Type        string
	Default     string
	Description string
}

var configDescriptions = map[string]string{
	"meta.driver":                   "Metadata store: sqlite or memory",
	"meta.path":                     "SQLite file holding the metadata (relative to the config file)",
	"meta.fixture":                  "YAML schema loaded into an empty store",
	"cache.enabled":                 "Cache metadata and compiled queries",
	"cache.ttl":                     "Lifetime of cache entries; 0s keeps them until invalidated",
	"compiler.default_limit":        "Page size when a read sets none",
	"compiler.max_long_text_length": "Characters of long text returned per cell",
	"log.level":                     "debug, info, warn or error",
	"log.format":                    "text or json",
	"verbose":                       "Force debug logging",
	"output":                        "auto, table, text or json",
}

var configDefaults = map[string]string{
	"meta.driver":            sharedcfg.DefaultMetaDriver,
	"meta.path":              sharedcfg.DefaultMetaPath,
	"cache.enabled":          fmt.Sprint(sharedcfg.DefaultCacheEnabled),
	"cache.ttl":              "0s",
	"compiler.default_limit": fmt.Sprint(sharedcfg.DefaultLimit),
	"log.level":              sharedcfg.DefaultLogLevel,
	"log.format":             sharedcfg.DefaultLogFormat,
	"verbose":                "false",
	"output":                 sharedcfg.DefaultOutput,
}

// configFields lists every key of config.Config and of one source entry,
// in declaration order.
func configFields() []ConfigField {
	var fields []ConfigField
	collectFields(reflect.TypeOf(config.Config{}), "", &fields)
	collectFields(reflect.TypeOf(core.SourceConfig{}), "sources.<id>.", &fields)
	return fields
}

func collectFields(t reflect.Type, prefix string, out *[]ConfigField) {
	for i := range t.NumField() {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("koanf"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.String() != "time.Duration" {
			collectFields(ft, key+".", out)
			continue
		}
		if ft.Kind() == reflect.Map && ft.Elem() == reflect.TypeOf(core.SourceConfig{}) {
			continue
		}
		*out = append(*out, ConfigField{
			Key:         key,
			Type:        typeName(ft),
			Default:     configDefaults[key],
			Description: configDescriptions[key],
		})
	}
}

func typeName(t reflect.Type) string {
	if t.String() == "time.Duration" {
		return "duration"
	}
	return t.String()
}

// envName is the environment variable that sets key.
func envName(key string) string {
	return config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// generateConfigDocs writes the leapgrid.yaml reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "LeapGrid configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("LeapGrid reads " + InlineCode(config.DefaultConfigFile) + " from the working directory or the nearest parent. " +
		"Values may reference environment variables as " + InlineCode("${NAME}") + " in source credentials.")

	w.CodeBlock("yaml", `meta:
  path: .leapgrid/meta.db
  fixture: schema.yaml
cache:
  ttl: 5m
sources:
  main:
    type: postgres
    host: db.internal
    database: shop
    user: ${PGUSER}
    password: ${PGPASSWORD}`)

	var general, source [][]string
	for _, f := range configFields() {
		row := []string{InlineCode(f.Key), f.Type, f.Default, f.Description}
		if strings.HasPrefix(f.Key, "sources.") {
			source = append(source, row)
			continue
		}
		general = append(general, row)
	}

	headers := []string{"Key", "Type", "Default", "Description"}
	w.Header(2, "Settings")
	w.Table(headers, general)

	w.Header(2, "Sources")
	w.Paragraph("Entries under " + InlineCode("sources") + " override the connection settings stored for the source with the same id.")
	w.Table(headers, source)

	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}
