package pipeline

import (
	"fmt"
	"strings"
	"time"

	"fmworker/internal/dataset"
	"fmworker/internal/formatter"
	"fmworker/internal/normalizer"
	"fmworker/pkg/metadata"
)

// toolName is recorded in the provenance block of generated docs.
const toolName = "fmworker"

// renderReadme produces the markdown documentation written alongside the
// normalized archive: method, scale factor, source, timestamp and a
// per-array table, signed with a provenance block.
func renderReadme(ds *dataset.Dataset, norm *normalizer.Normalizer, inputPath, normalizedFile string, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("# Normalized dataset\n\n")
	b.WriteString(fmt.Sprintf("- Method: %s\n", normalizer.Method))
	b.WriteString(fmt.Sprintf("- Scale factor: 1/%g\n", norm.Scale))
	b.WriteString(fmt.Sprintf("- Image key patterns: %s\n", strings.Join(norm.Patterns, ", ")))
	b.WriteString(fmt.Sprintf("- Source: %s\n", inputPath))
	b.WriteString(fmt.Sprintf("- Archive: %s\n", normalizedFile))
	b.WriteString(fmt.Sprintf("- Generated: %s\n\n", generatedAt.UTC().Format(time.RFC3339)))

	b.WriteString("## Arrays\n\n")

	rows := make([][]string, 0, ds.Len())
	for _, key := range ds.Keys() {
		arr := ds.Get(key)
		rows = append(rows, []string{key, shapeString(arr), string(arr.DType)})
	}

	b.WriteString(formatter.Table([]string{"Name", "Shape", "DType"}, rows))

	return metadata.Sign(b.String(), toolName, generatedAt)
}

func shapeString(arr *dataset.Array) string {
	dims := make([]string, len(arr.Shape))
	for i, d := range arr.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}

	return "(" + strings.Join(dims, ", ") + ")"
}
