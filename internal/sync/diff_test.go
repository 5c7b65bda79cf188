package sync

import (
	"reflect"
	"testing"
)

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name      string
		manifest  map[string]string
		scanned   map[string]string
		wantNew   []string
		wantMod   []string
		wantDel   []string
		unchanged int
	}{
		{
			name:      "one new file",
			manifest:  map[string]string{"a.json": "h1"},
			scanned:   map[string]string{"a.json": "h1", "b.json": "h2"},
			wantNew:   []string{"b.json"},
			wantMod:   []string{},
			wantDel:   []string{},
			unchanged: 1,
		},
		{
			name:      "modified and deleted",
			manifest:  map[string]string{"a.json": "h1", "c.json": "h3"},
			scanned:   map[string]string{"a.json": "h9"},
			wantNew:   []string{},
			wantMod:   []string{"a.json"},
			wantDel:   []string{"c.json"},
			unchanged: 0,
		},
		{
			name:     "empty manifest",
			manifest: nil,
			scanned:  map[string]string{"z": "1", "a": "2"},
			wantNew:  []string{"a", "z"},
			wantMod:  []string{},
			wantDel:  []string{},
		},
		{
			name:     "nothing scanned",
			manifest: map[string]string{"b": "1", "a": "2"},
			scanned:  nil,
			wantNew:  []string{},
			wantMod:  []string{},
			wantDel:  []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ComputeDiff(tt.manifest, tt.scanned)
			if !reflect.DeepEqual(d.New, tt.wantNew) {
				t.Errorf("New = %v, want %v", d.New, tt.wantNew)
			}
			if !reflect.DeepEqual(d.Modified, tt.wantMod) {
				t.Errorf("Modified = %v, want %v", d.Modified, tt.wantMod)
			}
			if !reflect.DeepEqual(d.Deleted, tt.wantDel) {
				t.Errorf("Deleted = %v, want %v", d.Deleted, tt.wantDel)
			}
			if d.Unchanged != tt.unchanged {
				t.Errorf("Unchanged = %d, want %d", d.Unchanged, tt.unchanged)
			}
		})
	}
}
