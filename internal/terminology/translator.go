// Package terminology maps lab-report abbreviations onto the field names used
// by the EMR data-entry screens.
package terminology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/medipilot/internal/plan"
)

// defaultFields covers the complete blood count panel.
var defaultFields = map[string]string{
	"WBC":    "白细胞计数",
	"RBC":    "红细胞计数",
	"HGB":    "血红蛋白",
	"PLT":    "血小板计数",
	"NEUT%":  "中性粒细胞百分比",
	"LYMPH%": "淋巴细胞百分比",
	"HCT":    "红细胞压积",
	"MCV":    "平均红细胞体积",
}

// Translator resolves metric abbreviations case-insensitively.
type Translator struct {
	fields map[string]string
}

// New returns a Translator seeded with the default panel. Entries in extra
// override or extend it.
func New(extra map[string]string) *Translator {
	fields := make(map[string]string, len(defaultFields)+len(extra))
	for k, v := range defaultFields {
		fields[k] = v
	}
	for k, v := range extra {
		if strings.TrimSpace(v) == "" {
			continue
		}
		fields[normalize(k)] = v
	}
	return &Translator{fields: fields}
}

// Translate returns the EMR field name for a metric abbreviation.
func (t *Translator) Translate(metric string) (string, bool) {
	v, ok := t.fields[normalize(metric)]
	return v, ok
}

// TargetField picks the field a finding should be typed into: the model's
// own hint first, then the table, then the raw metric name.
func (t *Translator) TargetField(f plan.Finding) string {
	if h := strings.TrimSpace(f.TargetFieldHint); h != "" {
		return h
	}
	if v, ok := t.Translate(f.Metric); ok {
		return v
	}
	return f.Metric
}

// Known lists the abbreviations in the table, sorted.
func (t *Translator) Known() []string {
	out := make([]string, 0, len(t.fields))
	for k := range t.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TaskContext renders extracted findings into the instruction for the operation phase.
func (t *Translator) TaskContext(task string, findings []plan.Finding) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(task))
	if len(findings) == 0 {
		return b.String()
	}
	b.WriteString("\n\nValues to enter:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s -> field %q: %s", f.Metric, t.TargetField(f), f.Value)
		if f.Unit != "" {
			fmt.Fprintf(&b, " %s", f.Unit)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func normalize(metric string) string {
	return strings.ToUpper(strings.Join(strings.Fields(metric), ""))
}
