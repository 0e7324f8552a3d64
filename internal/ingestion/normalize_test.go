package ingestion

import "testing"

func TestNormalizeTextCollapsesWhitespaceAndStripsControls(t *testing.T) {
	raw := "Hello\x00World   \t\tfoo\r\n\n\n\nbar"
	got := normalizeText(raw)
	want := "HelloWorld foo\n\nbar"
	if got != want {
		t.Fatalf("normalizeText() = %q, want %q", got, want)
	}
}

func TestNormalizeTextNFKC(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI decomposes under NFKC to "fi".
	got := normalizeText("ﬁle")
	if got != "file" {
		t.Fatalf("normalizeText() = %q, want %q", got, "file")
	}
}

func TestDetectLanguagePortuguese(t *testing.T) {
	text := "Conforme o anexo, a empresa não é responsável por esta transação."
	if got := detectLanguage(text); got != "pt" {
		t.Fatalf("detectLanguage() = %q, want pt", got)
	}
}

func TestDetectLanguageEnglish(t *testing.T) {
	text := "This is the report that was filed by the company for the transaction."
	if got := detectLanguage(text); got != "en" {
		t.Fatalf("detectLanguage() = %q, want en", got)
	}
}

func TestDetectLanguageUnknownOnNoise(t *testing.T) {
	if got := detectLanguage("x7z9 qwop zzzz flmn"); got != "unknown" {
		t.Fatalf("detectLanguage() = %q, want unknown", got)
	}
}
