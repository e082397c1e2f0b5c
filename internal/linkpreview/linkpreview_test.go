package linkpreview

import "testing"

func TestExtractURLsStripsMarkdownLinkSyntaxFirst(t *testing.T) {
	text := "check [this out](https://example.com/a) and also https://example.org/b"
	urls := ExtractURLs(text, 10)
	want := []string{"https://example.com/a", "https://example.org/b"}
	if len(urls) != len(want) {
		t.Fatalf("ExtractURLs() = %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("ExtractURLs()[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestExtractURLsDedupesAndRespectsMax(t *testing.T) {
	text := "https://a.example https://a.example https://b.example https://c.example"
	urls := ExtractURLs(text, 2)
	if len(urls) != 2 {
		t.Fatalf("ExtractURLs() = %v, want 2 results", urls)
	}
	if urls[0] != "https://a.example" || urls[1] != "https://b.example" {
		t.Fatalf("ExtractURLs() = %v", urls)
	}
}

func TestExtractURLsSkipsLocalAndPrivateHosts(t *testing.T) {
	text := "http://localhost/x http://127.0.0.1/y http://192.168.1.5/z https://public.example/ok"
	urls := ExtractURLs(text, 10)
	if len(urls) != 1 || urls[0] != "https://public.example/ok" {
		t.Fatalf("ExtractURLs() = %v, want only the public URL", urls)
	}
}

func TestExtractURLsZeroMaxReturnsNil(t *testing.T) {
	if urls := ExtractURLs("https://example.com", 0); urls != nil {
		t.Fatalf("ExtractURLs() = %v, want nil", urls)
	}
}

func TestSummarizeTruncatesOnWordBoundary(t *testing.T) {
	got := summarize("The quick brown fox jumps over the lazy dog", 20)
	if len(got) > 23 {
		t.Fatalf("summarize() = %q, too long", got)
	}
	if got == "" {
		t.Fatal("summarize() returned empty string")
	}
}

func TestSummarizeShortTextUnchanged(t *testing.T) {
	if got := summarize("short", 100); got != "short" {
		t.Fatalf("summarize() = %q, want unchanged", got)
	}
}
