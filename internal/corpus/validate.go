package corpus

import (
	"sort"

	"github.com/komiyamma/imageplan/internal/ledger"
	"github.com/komiyamma/imageplan/internal/refscan"
)

// LocalDuplicate is a file name referenced more than once by one document.
type LocalDuplicate struct {
	Document string   `json:"document"`
	Names    []string `json:"names"`
}

// GlobalDuplicate is a file name referenced by more than one document.
type GlobalDuplicate struct {
	Name      string   `json:"name"`
	Documents []string `json:"documents"`
}

// LedgerDuplicate is an image name carried by several ledger rows.
type LedgerDuplicate struct {
	Name string `json:"name"`
	IDs  []int  `json:"ids"`
}

type Report struct {
	Documents int               `json:"documents"`
	Local     []LocalDuplicate  `json:"local,omitempty"`
	Global    []GlobalDuplicate `json:"global,omitempty"`
	Ledger    []LedgerDuplicate `json:"ledger,omitempty"`
}

// Failed reports whether the corpus violates cross-document or ledger
// uniqueness. Local duplicates are warnings only.
func (r Report) Failed() bool {
	return len(r.Global) > 0 || len(r.Ledger) > 0
}

func Validate(ix *Index, entries []ledger.Entry) Report {
	var report Report
	if ix != nil {
		report.Documents = len(ix.documents)
		for _, doc := range ix.documents {
			counts := make(map[string]int)
			var repeated []string
			for _, ref := range doc.Refs {
				key := refscan.Key(ref.Name)
				counts[key]++
				if counts[key] == 2 {
					repeated = append(repeated, key)
				}
			}
			if len(repeated) > 0 {
				report.Local = append(report.Local, LocalDuplicate{Document: doc.Name, Names: repeated})
			}
		}
		for name, docs := range ix.byName {
			if len(docs) > 1 {
				report.Global = append(report.Global, GlobalDuplicate{Name: name, Documents: append([]string(nil), docs...)})
			}
		}
		sort.Slice(report.Global, func(i, j int) bool { return report.Global[i].Name < report.Global[j].Name })
	}

	ids := make(map[string][]int)
	var order []string
	for _, e := range entries {
		key := ledger.NameKey(e.ImageName)
		if _, ok := ids[key]; !ok {
			order = append(order, key)
		}
		ids[key] = append(ids[key], e.ID)
	}
	for _, key := range order {
		if len(ids[key]) > 1 {
			report.Ledger = append(report.Ledger, LedgerDuplicate{Name: key, IDs: ids[key]})
		}
	}
	return report
}
