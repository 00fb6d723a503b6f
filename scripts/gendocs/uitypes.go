package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapgrid/pkg/dialect"
	"github.com/leapstack-labs/leapgrid/pkg/fieldhandler"

	// Register dialects.
	_ "github.com/leapstack-labs/leapgrid/pkg/dialects/duckdb"
	_ "github.com/leapstack-labs/leapgrid/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/leapgrid/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/leapgrid/pkg/dialects/sqlite"
)

// generateUITypeDocs writes the column type reference from the field
// handler registry.
func generateUITypeDocs(outDir string) error {
	log.Printf("Generating UI type docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	reg := fieldhandler.Default()
	dialects := dialect.List()

	w := NewMarkdownWriter()
	w.Frontmatter("Column Types", "UI types and the dialects with dedicated handling")
	w.GeneratedMarker()

	w.Header(1, "Column Types")
	w.Paragraph("Every column has a UI type. Physical types read a stored value; virtual types " +
		"are computed by the compiler from links, lookups, rollups and formulas. " +
		"Types without a handler of their own are passed through unchanged.")

	var physical, virtual [][]string
	for _, ui := range reg.Types() {
		row := []string{InlineCode(string(ui)), handledBy(reg.Dialects(ui), dialects)}
		if ui.IsVirtual() {
			virtual = append(virtual, row)
			continue
		}
		physical = append(physical, row)
	}

	headers := []string{"Type", "Dialect-specific handling"}
	w.Header(2, "Physical")
	w.Table(headers, physical)
	w.Header(2, "Virtual")
	w.Table(headers, virtual)

	w.Header(2, "Dialects")
	items := make([]string, len(dialects))
	for i, name := range dialects {
		items[i] = InlineCode(name)
	}
	w.BulletList(items)

	return os.WriteFile(filepath.Join(outDir, "uitypes.md"), w.Bytes(), 0600)
}

// handledBy names the registered dialects with their own handler for a type.
func handledBy(registered, dialects []string) string {
	var own []string
	for _, name := range registered {
		if name != fieldhandler.DefaultDialect && slices.Contains(dialects, name) {
			own = append(own, name)
		}
	}
	if len(own) == 0 {
		return "shared"
	}
	return strings.Join(own, ", ")
}
