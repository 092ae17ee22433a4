package format

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/vertext/internal/models"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	return New(
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
	)
}

func fullDoc() models.Document {
	return models.Document{
		Meta: models.Meta{
			ID:          "2024-0301-0930",
			Title:       "春曉",
			Date:        "2024-03-01T09:30:00Z",
			Description: "孟浩然",
			Categories:  []string{"唐詩", "五絕"},
			Summary:     "春眠不覺曉",
			Slug:        "chun-xiao",
		},
		Content: "春眠不覺曉，\n處處聞啼鳥。\n\n夜來風雨聲，\n花落知多少。\n",
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		path     string
		fallback Format
		want     Format
	}{
		{"a.md", Tagged, Frontmatter},
		{"dir/b.MARKDOWN", Tagged, Frontmatter},
		{"c.txt", Frontmatter, Tagged},
		{"noext", Tagged, Tagged},
		{"noext", Frontmatter, Frontmatter},
		{"web:notes.md", Tagged, Frontmatter},
	}
	for _, tc := range cases {
		if got := Detect(tc.path, tc.fallback); got != tc.want {
			t.Errorf("Detect(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestParseName(t *testing.T) {
	for name, want := range map[string]Format{"txt": Tagged, ".md": Frontmatter, "Markdown": Frontmatter, "tagged": Tagged} {
		got, err := ParseName(name)
		if err != nil {
			t.Fatalf("ParseName(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseName(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseName("docx"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRoundTrip(t *testing.T) {
	c := testCodec(t)

	t.Run("frontmatter", func(t *testing.T) {
		doc := fullDoc()
		raw, err := c.Serialize(doc, Frontmatter)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		res := c.Parse(raw, Frontmatter)
		if !res.HasMeta {
			t.Fatalf("HasMeta = false for %q", raw)
		}
		if !res.Meta.Equal(doc.Meta) {
			t.Errorf("meta = %+v, want %+v", res.Meta, doc.Meta)
		}
		if res.Content != doc.Content {
			t.Errorf("content = %q, want %q", res.Content, doc.Content)
		}
	})

	t.Run("tagged", func(t *testing.T) {
		doc := fullDoc()
		doc.Meta.Categories, doc.Meta.Summary, doc.Meta.Slug = nil, "", ""
		raw, err := c.Serialize(doc, Tagged)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		res := c.Parse(raw, Tagged)
		if !res.Meta.Equal(doc.Meta) {
			t.Errorf("meta = %+v, want %+v", res.Meta, doc.Meta)
		}
		if res.Content != doc.Content {
			t.Errorf("content = %q, want %q", res.Content, doc.Content)
		}
	})
}

func TestSerializeIdempotent(t *testing.T) {
	c := testCodec(t)
	for _, f := range []Format{Tagged, Frontmatter} {
		first, err := c.Serialize(fullDoc(), f)
		if err != nil {
			t.Fatalf("Serialize(%v): %v", f, err)
		}
		res := c.Parse(first, f)
		second, err := c.Serialize(models.Document{Meta: res.Meta, Content: res.Content}, f)
		if err != nil {
			t.Fatalf("Serialize(%v): %v", f, err)
		}
		if first != second {
			t.Errorf("%v: second serialization differs:\n%q\n%q", f, first, second)
		}
	}
}

func TestParseTagged_NoTags(t *testing.T) {
	in := "Hello world\nSecond line"
	res := testCodec(t).Parse(in, Tagged)
	if res.HasMeta {
		t.Error("HasMeta = true, want false")
	}
	if !res.Meta.IsZero() {
		t.Errorf("meta = %+v, want empty", res.Meta)
	}
	if res.Content != in {
		t.Errorf("content = %q, want %q", res.Content, in)
	}
}

func TestParseTagged_Lenient(t *testing.T) {
	c := testCodec(t)

	t.Run("unknown labels dropped", func(t *testing.T) {
		res := c.Parse("[作者]=佚名 | [標題]=無題\n-----\n正文", Tagged)
		if res.Meta.Title != "無題" {
			t.Errorf("title = %q, want 無題", res.Meta.Title)
		}
		if res.Content != "正文" {
			t.Errorf("content = %q", res.Content)
		}
	})

	t.Run("simplified labels", func(t *testing.T) {
		res := c.Parse("[编号]=x1 | [标题]=无题 | [说明]=注\n正文", Tagged)
		if res.Meta.ID != "x1" || res.Meta.Title != "无题" || res.Meta.Description != "注" {
			t.Errorf("meta = %+v", res.Meta)
		}
		// No separator line: everything after the tag line is body.
		if res.Content != "正文" {
			t.Errorf("content = %q", res.Content)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		res := c.Parse("[編號]=a\n-----\n", Tagged)
		if res.Meta.Title != models.UntitledTitle {
			t.Errorf("title = %q, want placeholder", res.Meta.Title)
		}
		if res.Meta.Date != fixedNow.Format(time.RFC3339) {
			t.Errorf("date = %q", res.Meta.Date)
		}
		if res.Content != "" {
			t.Errorf("content = %q, want empty", res.Content)
		}
	})

	t.Run("crlf separator", func(t *testing.T) {
		res := c.Parse("[標題]=A\r\n-----\r\nbody\r\n", Tagged)
		if res.Meta.Title != "A" {
			t.Errorf("title = %q", res.Meta.Title)
		}
		if res.Content != "body\r\n" {
			t.Errorf("content = %q", res.Content)
		}
	})
}

func TestSerializeTagged(t *testing.T) {
	doc := models.Document{
		Meta:    models.Meta{ID: "2024-0301-0930", Title: "春曉", Date: "2024-03-01", Categories: []string{"x"}},
		Content: "body",
	}
	got, err := testCodec(t).Serialize(doc, Tagged)
	if err != nil {
		t.Fatal(err)
	}
	want := "[編號]=2024-0301-0930 | [標題]=春曉 | [日期]=2024-03-01\n-----\nbody"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}

	doc.Meta.Title = "a|b\nc"
	got, _ = testCodec(t).Serialize(doc, Tagged)
	if first, _, _ := strings.Cut(got, "\n"); !strings.Contains(first, "[標題]=a｜b c") {
		t.Errorf("tag line = %q", first)
	}
}

func TestSerializeTagged_EmptyMeta(t *testing.T) {
	c := testCodec(t)
	got, _ := c.Serialize(models.Document{Content: "plain"}, Tagged)
	if got != "plain" {
		t.Errorf("got %q, want bare content", got)
	}
	if res := c.Parse(got, Tagged); res.HasMeta || res.Content != "plain" {
		t.Errorf("reparse = %+v", res)
	}
}

func TestSerializeTagged_EmptyMetaTagLikeBody(t *testing.T) {
	c := testCodec(t)
	doc := models.Document{Content: "[a]=b\nbody"}
	got, err := c.Serialize(doc, Tagged)
	if err != nil {
		t.Fatal(err)
	}
	if want := "[標題]=" + models.UntitledTitle + "\n-----\n[a]=b\nbody"; got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
	res := c.Decode(got, Tagged)
	if res.Content != doc.Content {
		t.Errorf("content = %q, want %q", res.Content, doc.Content)
	}
	if res.Meta.Title != models.UntitledTitle || res.Meta.ID != "" {
		t.Errorf("meta = %+v", res.Meta)
	}
}

func TestSerializeTagged_PipeInValue(t *testing.T) {
	c := testCodec(t)
	doc := models.Document{Meta: models.Meta{Title: "上|下"}, Content: "body"}
	got, _ := c.Serialize(doc, Tagged)
	res := c.Parse(got, Tagged)
	if res.Meta.Title != "上｜下" {
		t.Errorf("title = %q, want the full-width bar %q", res.Meta.Title, "上｜下")
	}
	if res.Content != "body" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestParseFrontmatter_Fallback(t *testing.T) {
	var hooked int
	c := New(
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		WithFallbackHook(func(Format, error) { hooked++ }),
	)

	in := "---\nbad: [unclosed\n---\nBody"
	res := c.Parse(in, Frontmatter)
	if res.Content != in {
		t.Errorf("content = %q, want whole input", res.Content)
	}
	if !res.Meta.IsZero() || res.HasMeta {
		t.Errorf("meta = %+v, want empty", res.Meta)
	}
	if res.Diagnostic == nil {
		t.Error("expected a diagnostic")
	}
	if hooked != 1 {
		t.Errorf("fallback hook called %d times, want 1", hooked)
	}
}

func TestParseFrontmatter_NotAMapping(t *testing.T) {
	in := "---\n- a\n- b\n---\nBody"
	res := testCodec(t).Parse(in, Frontmatter)
	if res.Content != in || res.Diagnostic == nil {
		t.Errorf("res = %+v, want whole-text fallback", res)
	}
}

func TestParseFrontmatter_WrongFieldType(t *testing.T) {
	in := "---\ntitle:\n  nested: true\n---\nBody"
	res := testCodec(t).Parse(in, Frontmatter)
	if res.Content != in || res.Diagnostic == nil {
		t.Errorf("res = %+v, want whole-text fallback", res)
	}
}

func TestParseFrontmatter_NoBlock(t *testing.T) {
	c := testCodec(t)
	for _, in := range []string{
		"# just markdown\n",
		"---\ntitle: never closed\nBody",
		"",
		"---",
	} {
		res := c.Parse(in, Frontmatter)
		if res.HasMeta || res.Content != in || res.Diagnostic != nil {
			t.Errorf("Parse(%q) = %+v", in, res)
		}
	}
}

func TestParseFrontmatter_Schema(t *testing.T) {
	in := "---\n" +
		"title: 靜夜思\n" +
		"date: 2024-01-01\n" +
		"categories:\n  - 唐詩\n  - \"\"\n" +
		"summary: ~\n" +
		"author: 李白\n" +
		"---\n" +
		"\n床前明月光"
	res := testCodec(t).Parse(in, Frontmatter)
	if !res.HasMeta {
		t.Fatal("HasMeta = false")
	}
	if res.Meta.Title != "靜夜思" || res.Meta.Date != "2024-01-01" {
		t.Errorf("meta = %+v", res.Meta)
	}
	if len(res.Meta.Categories) != 1 || res.Meta.Categories[0] != "唐詩" {
		t.Errorf("categories = %q", res.Meta.Categories)
	}
	if res.Meta.Summary != "" {
		t.Errorf("summary = %q, want absent", res.Meta.Summary)
	}
	if res.Content != "\n床前明月光" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestParseFrontmatter_Defaults(t *testing.T) {
	res := testCodec(t).Parse("---\nslug: x\n---\n", Frontmatter)
	if res.Meta.Title != models.UntitledTitle {
		t.Errorf("title = %q", res.Meta.Title)
	}
	if res.Meta.Date != fixedNow.Format(time.RFC3339) {
		t.Errorf("date = %q", res.Meta.Date)
	}
	if res.Meta.Categories != nil {
		t.Errorf("categories = %q, want nil", res.Meta.Categories)
	}
}

func TestDecode_NoDefaults(t *testing.T) {
	res := testCodec(t).Decode("[編號]=2024-0301-0930\n-----\nbody", Tagged)
	if !res.HasMeta {
		t.Fatal("tag line not recognised")
	}
	if res.Meta.ID != "2024-0301-0930" || res.Meta.Title != "" || res.Meta.Date != "" {
		t.Errorf("meta = %+v, want only the id", res.Meta)
	}
	if res.Content != "body" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestCategoriesRoundTrip(t *testing.T) {
	c := testCodec(t)

	doc := models.Document{Meta: models.Meta{Title: "t", Date: "d", Categories: []string{"a", "b"}}, Content: "x"}
	raw, err := c.Serialize(doc, Frontmatter)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(raw, "categories: [a, b]\n") {
		t.Errorf("categories not in flow style:\n%s", raw)
	}
	if got := c.Parse(raw, Frontmatter).Meta.Categories; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("categories = %q", got)
	}

	doc.Meta.Categories = []string{}
	raw, _ = c.Serialize(doc, Frontmatter)
	if strings.Contains(raw, "categories") {
		t.Errorf("empty categories emitted:\n%s", raw)
	}
	if got := c.Parse(raw, Frontmatter).Meta.Categories; len(got) != 0 {
		t.Errorf("categories = %q, want empty", got)
	}
}

func TestSerializeFrontmatter_OmitsEmptyOptional(t *testing.T) {
	raw, err := testCodec(t).Serialize(models.Document{Meta: models.Meta{Title: "t", Date: "2024"}, Content: "b"}, Frontmatter)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"summary", "slug", "description", "id", "categories", "word"} {
		if strings.Contains(raw, key) {
			t.Errorf("unexpected %q in:\n%s", key, raw)
		}
	}
	if !strings.HasPrefix(raw, "---\ntitle: t\n") || !strings.HasSuffix(raw, "---\nb") {
		t.Errorf("unexpected envelope:\n%s", raw)
	}
}

func TestSerializeFrontmatter_QuotesTypedScalars(t *testing.T) {
	c := testCodec(t)
	doc := models.Document{Meta: models.Meta{Title: "123", Date: "2024-03-01T09:30:00Z", Slug: "true", ID: "a: b"}}
	raw, err := c.Serialize(doc, Frontmatter)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Parse(raw, Frontmatter).Meta; !got.Equal(doc.Meta) {
		t.Errorf("meta = %+v, want %+v\n%s", got, doc.Meta, raw)
	}
}

func TestContentNeverCarriesEnvelope(t *testing.T) {
	c := testCodec(t)
	doc := fullDoc()
	for _, f := range []Format{Tagged, Frontmatter} {
		raw, _ := c.Serialize(doc, f)
		res := c.Parse(raw, f)
		if strings.Contains(res.Content, "[編號]=") || strings.HasPrefix(res.Content, fence) {
			t.Errorf("%v: envelope leaked into content %q", f, res.Content)
		}
	}
}
