// Package layout derives deterministic, collision-resistant table, column,
// and index names for a resource type, the way a relational backend with a
// 63-character identifier limit requires.
package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MaxIdentifierLen is the backing store's identifier length limit.
const MaxIdentifierLen = 63

// ChopLongName truncates name to at most maxLen characters, replacing the
// tail with a short hash so distinct long names stay distinct: when name
// exceeds maxLen it becomes name[:maxLen-7] + "_" + sha256(name)[-6:].
func ChopLongName(name string, maxLen int) string {
	if len(name) <= maxLen {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	hexSum := hex.EncodeToString(sum[:])
	suffix := hexSum[len(hexSum)-6:]
	headLen := maxLen - 7
	if headLen < 0 {
		headLen = 0
	}
	return name[:headLen] + "_" + suffix
}

// Names holds the full set of identifiers derived for one resource type.
type Names struct {
	MainTable       string
	AuxTable        string
	ChangesTable    string
	FilesTable      string
	SearchIndex     string
	AuxIDIndex      string
	FilesUniqueIdx  string
	ChangesRevIdx   string
	DataSubpathCols map[string]string // subpath name -> column name
}

// ForType derives every identifier needed to lay out resourceType, chopping
// any name that would exceed MaxIdentifierLen.
func ForType(resourceType string, subpaths []string) Names {
	n := Names{
		MainTable:      ChopLongName(resourceType, MaxIdentifierLen),
		AuxTable:       ChopLongName(resourceType+"_aux", MaxIdentifierLen),
		ChangesTable:   ChopLongName(resourceType+"_changes", MaxIdentifierLen),
		FilesTable:     ChopLongName(resourceType+"_files", MaxIdentifierLen),
		SearchIndex:    ChopLongName(resourceType+"_search_idx", MaxIdentifierLen),
		AuxIDIndex:     ChopLongName(resourceType+"_aux_id_idx", MaxIdentifierLen),
		FilesUniqueIdx: ChopLongName(resourceType+"_files_unique_idx", MaxIdentifierLen),
		ChangesRevIdx:  ChopLongName(resourceType+"_changes_rev_idx", MaxIdentifierLen),
	}
	n.DataSubpathCols = make(map[string]string, len(subpaths))
	for _, sp := range subpaths {
		n.DataSubpathCols[sp] = ChopLongName(DataColumnName(resourceType, sp), MaxIdentifierLen)
	}
	return n
}

// DataColumnName is the unchopped column name for a sub-path's JSON column.
func DataColumnName(resourceType, subpath string) string {
	return fmt.Sprintf("data_%s", subpath)
}
