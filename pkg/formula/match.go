package formula

import (
	"github.com/leapstack-labs/leapgrid/pkg/core"
	"golang.org/x/text/cases"
)

// MatchColumn finds the column a reference names: an exact id match first,
// then a case-insensitive title match.
func MatchColumn(ref string, cols []*core.Column) *core.Column {
	for _, c := range cols {
		if c.ID == ref {
			return c
		}
	}
	folder := cases.Fold()
	want := folder.String(ref)
	for _, c := range cols {
		if folder.String(c.Title) == want {
			return c
		}
	}
	return nil
}
