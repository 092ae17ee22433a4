package format

import (
	"regexp"
	"strings"

	"github.com/starford/vertext/internal/models"
)

// tagSeparator is the literal line written between the tag line and the body.
const tagSeparator = "-----"

var tagRe = regexp.MustCompile(`\[(.+?)\]=(.+?)(?:\s*\|\s*|$)`)

// Labels as written. Reading also accepts the simplified forms.
const (
	labelID          = "編號"
	labelTitle       = "標題"
	labelDate        = "日期"
	labelDescription = "說明"
)

var tagFields = map[string]func(*models.Meta, string){
	labelID:          func(m *models.Meta, v string) { m.ID = v },
	"编号":             func(m *models.Meta, v string) { m.ID = v },
	labelTitle:       func(m *models.Meta, v string) { m.Title = v },
	"标题":             func(m *models.Meta, v string) { m.Title = v },
	labelDate:        func(m *models.Meta, v string) { m.Date = v },
	labelDescription: func(m *models.Meta, v string) { m.Description = v },
	"说明":             func(m *models.Meta, v string) { m.Description = v },
}

// tagValueReplacer keeps values on one line and away from the pair separator.
var tagValueReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "|", "｜")

func parseTagged(raw string) Result {
	first, rest, hasRest := strings.Cut(raw, "\n")

	matches := tagRe.FindAllStringSubmatch(first, -1)
	if len(matches) == 0 {
		return Result{Content: raw}
	}

	var meta models.Meta
	for _, m := range matches {
		if set, ok := tagFields[strings.TrimSpace(m[1])]; ok {
			set(&meta, strings.TrimSpace(m[2]))
		}
	}

	if !hasRest {
		return Result{Meta: meta, HasMeta: true}
	}
	if sep, body, more := strings.Cut(rest, "\n"); strings.TrimSuffix(sep, "\r") == tagSeparator {
		if !more {
			body = ""
		}
		rest = body
	}
	return Result{Meta: meta, Content: rest, HasMeta: true}
}

func serializeTagged(m models.Meta, content string) string {
	fields := [...]struct {
		label string
		value string
	}{
		{labelID, m.ID},
		{labelTitle, m.Title},
		{labelDate, m.Date},
		{labelDescription, m.Description},
	}

	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(tagValueReplacer.Replace(f.value))
		if v == "" {
			continue
		}
		pairs = append(pairs, "["+f.label+"]="+v)
	}
	if len(pairs) == 0 {
		first, _, _ := strings.Cut(content, "\n")
		if !tagRe.MatchString(first) {
			return content
		}
		// A bare body would lose its first line to the tag parser.
		pairs = append(pairs, "["+labelTitle+"]="+models.UntitledTitle)
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(pairs, " | "))
	sb.WriteByte('\n')
	sb.WriteString(tagSeparator)
	sb.WriteByte('\n')
	sb.WriteString(content)
	return sb.String()
}
