package fields

import (
	"strings"

	"resumedesk/internal/resume"
)

// Render 按字段表顺序渲染 "展示名: 值"，跳过空字段；多行值缩进到下一行。
func Render(r *Registry, in *resume.Intake) string {
	var b strings.Builder
	for _, f := range r.fields {
		value := in.Text(f.Key)
		if value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Label)
		b.WriteByte(':')
		if strings.Contains(value, "\n") {
			b.WriteString("\n  ")
			value = strings.ReplaceAll(value, "\n", "\n  ")
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(value)
	}
	return b.String()
}
