package chunker

import (
	"github.com/dgallion1/mdchunk/internal/doctree"
)

// table gives every table (or table group) a chunk of its own. A heading
// directly above a table travels with it; oversized tables are split into
// row groups that repeat the header.
func (r *run) table() ([]doctree.Chunk, error) {
	opts := segmentOptions{isolateTables: true}
	if r.cfg.TableGrouping.Enabled {
		opts.groupTables = &r.cfg.TableGrouping
	}
	return r.pack(r.segment(r.doc, 1, r.doc.LineCount(), opts)), nil
}

// groupTables merges runs of nearby tables into single group elements. Tables
// join a group while they are at most MaxDistanceLines apart with only text in
// between, optionally share a header section, and the group stays within both
// the group size cap and the table count cap.
func (r *run) groupTables(doc *doctree.Document, els []groupedElement, g TableGroupingConfig) []groupedElement {
	out := make([]groupedElement, 0, len(els))
	for i := 0; i < len(els); i++ {
		el := els[i]
		if el.Kind != doctree.KindTable {
			out = append(out, el)
			continue
		}

		tables := []int{el.Index}
		end := el.EndLine
		section := doc.HeaderAt(el.StartLine)
		j := i + 1
		for ; j < len(els) && len(tables) < g.MaxTablesPerGroup; j++ {
			next := els[j]
			if next.Kind != doctree.KindTable {
				break
			}
			if next.StartLine-end-1 > g.MaxDistanceLines {
				break
			}
			if g.RequireSameSection && doc.HeaderAt(next.StartLine) != section {
				break
			}
			size := runeLen(normalizeBlankRuns(doc.Slice(el.StartLine, next.EndLine)))
			if size > g.MaxGroupSize || size > r.max {
				break
			}
			tables = append(tables, next.Index)
			end = next.EndLine
		}

		if len(tables) == 1 {
			out = append(out, el)
			continue
		}
		out = append(out, groupedElement{
			Element: doctree.Element{Kind: kindTableGroup, StartLine: el.StartLine, EndLine: end},
			tables:  tables,
		})
		i = j - 1
	}
	return out
}
