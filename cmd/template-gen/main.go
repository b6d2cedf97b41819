// template-gen writes the equipment import and device quota templates to disk
// from a JSON snapshot of the reference data, without a running backend.
//
// Usage:
//
//	go run ./cmd/template-gen -in reference.json -out ./out
//
// reference.json:
//
//	{"categories": [{"id": 1, "ma_nhom": "01", "ten_nhom": "...", "parent_id": null}],
//	 "departments": [{"name": "Khoa Nội"}]}
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/workflow"
)

type referenceSnapshot struct {
	Categories  []models.QuotaCategory `json:"categories"`
	Departments []models.Department    `json:"departments"`
}

// snapshotCaller answers the two reference functions from the snapshot.
type snapshotCaller struct {
	snapshot referenceSnapshot
}

func (s snapshotCaller) Call(_ context.Context, function string, _ map[string]any) (json.RawMessage, error) {
	switch function {
	case "dinh_muc_nhom_list":
		return json.Marshal(s.snapshot.Categories)
	case "departments_list":
		return json.Marshal(s.snapshot.Departments)
	}
	return nil, fmt.Errorf("function %s is not in the snapshot", function)
}

func main() {
	in := flag.String("in", "", "Required: JSON file with categories and departments")
	out := flag.String("out", ".", "Output directory")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "-in is required")
		os.Exit(2)
	}
	logger := config.GetLogger()

	raw, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *in, err)
		os.Exit(1)
	}
	var snapshot referenceSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", *in, err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
		os.Exit(1)
	}

	ctx := context.Background()
	caller := snapshotCaller{snapshot: snapshot}
	outputs := []struct {
		file     string
		generate func(context.Context) ([]byte, error)
	}{
		{"Mau_Nhap_Thiet_Bi.xlsx", func(ctx context.Context) ([]byte, error) { return workflow.EquipmentImportTemplate(ctx, caller) }},
		{"Mau_Dinh_Muc_Thiet_Bi.xlsx", func(ctx context.Context) ([]byte, error) { return workflow.DeviceQuotaTemplate(ctx, caller) }},
	}
	for _, o := range outputs {
		content, err := o.generate(ctx)
		if err != nil {
			config.LogError(logger, "template-gen", "main", "generate", o.file, err)
			os.Exit(1)
		}
		path := filepath.Join(*out, o.file)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d bytes)\n", path, len(content))
	}
	fmt.Printf("%d categories (%d leaves), %d departments\n",
		len(snapshot.Categories), len(workflow.LeafCategories(snapshot.Categories)), len(snapshot.Departments))
}
