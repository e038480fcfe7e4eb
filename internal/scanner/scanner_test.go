package scanner

import (
	"strings"
	"testing"
)

func TestFindStopsAtDoubleQuote(t *testing.T) {
	t.Parallel()

	content := `{"feature_image":"https://substackcdn.com/a/b.png","title":"x"}`
	matches, err := Find(content, "https://substackcdn.com")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %v", matches)
	}
	if matches[0] != "https://substackcdn.com/a/b.png" {
		t.Fatalf("unexpected match: %q", matches[0])
	}
}

func TestFindStopsAtCommaBeforeNextURL(t *testing.T) {
	t.Parallel()

	content := `https://substackcdn.com/a.png,https://substackcdn.com/b.png`
	matches, err := Find(content, "https://substackcdn.com")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches split at the comma, got %v", matches)
	}
	if matches[0] != "https://substackcdn.com/a.png" || matches[1] != "https://substackcdn.com/b.png" {
		t.Fatalf("unexpected matches: %v", matches)
	}
}

func TestFindStopsAtClosingParenAndAngleBracket(t *testing.T) {
	t.Parallel()

	content := `(https://substackcdn.com/a.png) <p>https://substackcdn.com/b.png</p>`
	matches, err := Find(content, "https://substackcdn.com")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", matches)
	}
	if matches[0] != "https://substackcdn.com/a.png" || matches[1] != "https://substackcdn.com/b.png" {
		t.Fatalf("unexpected matches: %v", matches)
	}
}

func TestFindIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	content := `HTTPS://SUBSTACKCDN.COM/a.png`
	matches, err := Find(content, "https://substackcdn.com")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected case-insensitive match, got %v", matches)
	}
}

func TestDedupPreservesOrder(t *testing.T) {
	t.Parallel()

	got := Dedup([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRewriteReplacesLiteralOccurrences(t *testing.T) {
	t.Parallel()

	content := `{"feature_image":"https://substackcdn.com/a.png","lexical":"https://substackcdn.com/a.png here too"}`
	out, err := Rewrite(content, "https://substackcdn.com/a.png", "images/a.png")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if strings.Contains(out, "substackcdn.com") {
		t.Fatalf("expected all occurrences rewritten, got %q", out)
	}
	if strings.Count(out, "__GHOST_URL__images/a.png") != 2 {
		t.Fatalf("expected 2 rewritten occurrences, got %q", out)
	}
}

func TestRewriteEscapesRegexMetacharacters(t *testing.T) {
	t.Parallel()

	src := "https://substackcdn.com/a(1).png?x=y+z"
	content := `"` + src + `"`
	out, err := Rewrite(content, src, "images/a1.png")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if out != `"__GHOST_URL__images/a1.png"` {
		t.Fatalf("unexpected rewrite result: %q", out)
	}
}
