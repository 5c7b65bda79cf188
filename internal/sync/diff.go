package sync

import (
	"sort"

	"github.com/kuhandran/Content-Hub-sub001/internal/model"
	"github.com/kuhandran/Content-Hub-sub001/internal/source"
)

// ComputeDiff compares a manifest snapshot (path → hash) against a scanned
// set (path → hash). The result lists are sorted and never nil.
func ComputeDiff(manifest, scanned map[string]string) *model.DiffReport {
	d := &model.DiffReport{New: []string{}, Modified: []string{}, Deleted: []string{}}
	for p, h := range scanned {
		old, ok := manifest[p]
		switch {
		case !ok:
			d.New = append(d.New, p)
		case old != h:
			d.Modified = append(d.Modified, p)
		default:
			d.Unchanged++
		}
	}
	for p := range manifest {
		if _, ok := scanned[p]; !ok {
			d.Deleted = append(d.Deleted, p)
		}
	}
	sort.Strings(d.New)
	sort.Strings(d.Modified)
	sort.Strings(d.Deleted)
	return d
}

func manifestHashes(entries []*model.ManifestEntry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.FilePath] = e.FileHash
	}
	return m
}

func scannedHashes(files []*source.FileDescriptor) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f.RelativePath] = f.Hash
	}
	return m
}
