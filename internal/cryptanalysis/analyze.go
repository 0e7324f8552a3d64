// Package cryptanalysis implements the cryptanalysis stage (spec §4.5):
// base64/hex/Caesar-cipher detection over document text, plus
// capability-gated PNG LSB steganography scanning over the uploads
// directory.
//
// Grounded on original_source/cryptanalysis/{decoders,detectors,
// frequency,steganography}.py for the detection regexes, the PT/EN
// letter-frequency reference tables, and the Caesar shift correlation
// algorithm.
package cryptanalysis

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

const (
	minBase64Run = 20
	minHexRun    = 16
	minCaesarRun = 20
)

var (
	base64Pattern = regexp.MustCompile(`[A-Za-z0-9+/]{20,}={0,2}`)
	hexPattern    = regexp.MustCompile(`[0-9a-fA-F]{16,}`)
	letterRun     = regexp.MustCompile(`[A-Za-z]{20,}`)
)

// ptFrequency and enFrequency are the reference letter-frequency tables
// (original_source/cryptanalysis/frequency.py), indexed a-z.
var (
	enFrequency = [26]float64{
		0.0817, 0.0149, 0.0278, 0.0425, 0.1270, 0.0223, 0.0202, 0.0609, 0.0697,
		0.0015, 0.0077, 0.0403, 0.0241, 0.0675, 0.0751, 0.0193, 0.0010, 0.0599,
		0.0633, 0.0906, 0.0276, 0.0098, 0.0236, 0.0015, 0.0197, 0.0007,
	}
	ptFrequency = [26]float64{
		0.1463, 0.0104, 0.0388, 0.0499, 0.1257, 0.0102, 0.0130, 0.0128, 0.0618,
		0.0040, 0.0002, 0.0278, 0.0474, 0.0505, 0.1073, 0.0252, 0.0120, 0.0653,
		0.0781, 0.0434, 0.0463, 0.0167, 0.0001, 0.0021, 0.0001, 0.0047,
	}
)

// Stage runs cryptanalysis over every document's extracted text, and
// separately scans the uploads directory for PNG steganography
// candidates (spec §4.5).
func Stage(ctx context.Context, s *state.InvestigationState) error {
	segmentSeq := 0
	for _, docID := range sortedDocIDs(s.ExtractedText) {
		text := s.ExtractedText[docID]
		segmentSeq = scanText(s, docID, text, segmentSeq)
	}

	scanPNGSteganography(s)

	s.CurrentStep = "cryptanalysis_complete"
	logging.Info("cryptanalysis stage complete", "investigation_id", s.InvestigationID,
		"segments", len(s.CryptoSegments), "findings", len(s.CryptographyFindings))
	return nil
}

func scanText(s *state.InvestigationState, docID, text string, segmentSeq int) int {
	for _, loc := range base64Pattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		decoded, ok := tryBase64Decode(raw)
		segmentSeq++
		addFinding(s, docID, segmentSeq, state.CryptoBase64, raw, decoded, loc[0], loc[1], nil)
		_ = ok
	}

	for _, loc := range hexPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		if len(raw)%2 != 0 {
			continue
		}
		decoded, ok := tryHexDecode(raw)
		segmentSeq++
		addFinding(s, docID, segmentSeq, state.CryptoHex, raw, decoded, loc[0], loc[1], nil)
		_ = ok
	}

	for _, loc := range letterRun.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		shift, decoded, correlation := bestCaesarShift(raw)
		if correlation < 0.4 {
			continue
		}
		segmentSeq++
		shiftCopy := shift
		addFinding(s, docID, segmentSeq, state.CryptoCaesar, raw, decoded, loc[0], loc[1], &shiftCopy)
	}

	return segmentSeq
}

func addFinding(s *state.InvestigationState, docID string, seq int, ct state.CryptoType, raw, decoded string, start, end int, caesarShift *int) {
	confidence := 0.7
	if decoded != "" {
		confidence = 0.95
	}

	seg := &state.CryptoSegment{
		SegmentID:      fmt.Sprintf("%s-seg-%d", docID, seq),
		DocID:          docID,
		Content:        truncate(raw, 200),
		StartPos:       start,
		EndPos:         end,
		CryptoType:     ct,
		Confidence:     confidence,
		DecodedContent: decoded,
		CaesarShift:    caesarShift,
	}
	s.CryptoSegments = append(s.CryptoSegments, seg)

	finding := &state.CryptographyFinding{
		DocumentID:     docID,
		FindingType:    "encoded_content",
		Location:       fmt.Sprintf("%d-%d", start, end),
		EncodedText:    truncate(raw, 200),
		DecodedPreview: truncate(decoded, 150),
		Confidence:     confidence,
		Algorithm:      string(ct),
	}
	s.CryptographyFindings = append(s.CryptographyFindings, finding)
}

// tryBase64Decode validates a candidate run by round-trip decode, per
// spec §4.5 ("validated by round-trip decode").
func tryBase64Decode(raw string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(raw)
		if err != nil {
			return "", false
		}
	}
	if !isMostlyPrintable(decoded) {
		return "", false
	}
	return string(decoded), true
}

func tryHexDecode(raw string) (string, bool) {
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return "", false
	}
	if !isMostlyPrintable(decoded) {
		return "", false
	}
	return string(decoded), true
}

func isMostlyPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	printable := 0
	for _, c := range b {
		if c >= 32 && c < 127 || c == '\n' || c == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len(b)) > 0.85
}

// bestCaesarShift tries all 26 shifts and returns the one whose decoded
// letter-frequency distribution best correlates with the PT or EN
// reference tables (spec §4.5: "pick shift maximizing correlation
// coefficient").
func bestCaesarShift(raw string) (int, string, float64) {
	observed := letterFrequencies(raw)

	bestShift := 0
	bestCorr := -1.0
	for shift := 0; shift < 26; shift++ {
		shifted := rotateFrequencies(observed, shift)
		corr := maxCorrelation(shifted)
		if corr > bestCorr {
			bestCorr = corr
			bestShift = shift
		}
	}
	if bestCorr < 0.4 {
		return 0, "", bestCorr
	}
	return bestShift, caesarDecode(raw, bestShift), bestCorr
}

func letterFrequencies(s string) [26]float64 {
	var counts [26]int
	total := 0
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			counts[r-'a']++
			total++
		}
	}
	var freq [26]float64
	if total == 0 {
		return freq
	}
	for i, c := range counts {
		freq[i] = float64(c) / float64(total)
	}
	return freq
}

// rotateFrequencies decodes the observed distribution under the
// hypothesis that the ciphertext was shifted by `shift`, i.e. it maps
// plaintext letter i to ciphertext letter (i+shift)%26, so the decoded
// frequency of letter i is the observed frequency of (i+shift)%26.
func rotateFrequencies(observed [26]float64, shift int) [26]float64 {
	var out [26]float64
	for i := 0; i < 26; i++ {
		out[i] = observed[(i+shift)%26]
	}
	return out
}

func maxCorrelation(dist [26]float64) float64 {
	en := pearsonCorrelation(dist, enFrequency)
	pt := pearsonCorrelation(dist, ptFrequency)
	if pt > en {
		return pt
	}
	return en
}

func pearsonCorrelation(a, b [26]float64) float64 {
	var meanA, meanB float64
	for i := 0; i < 26; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= 26
	meanB /= 26

	var num, denA, denB float64
	for i := 0; i < 26; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		return 0
	}
	return num / sqrt(denA*denB)
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 30; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

// caesarDecode shifts each ciphertext letter by -shift, preserving case
// and passing through non-letters.
func caesarDecode(s string, shift int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune('a' + (r-'a'-rune(shift)+26)%26)
		case r >= 'A' && r <= 'Z':
			b.WriteRune('A' + (r-'A'-rune(shift)+26)%26)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sortedDocIDs(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// scanPNGSteganography walks the uploads directory for PNG files and
// attempts least-significant-bit extraction from the red channel
// (capability-gated: degrades silently if a file fails to decode as
// PNG, since the stage must never abort the run).
func scanPNGSteganography(s *state.InvestigationState) {
	entries, err := os.ReadDir(s.UploadsPath)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		path := filepath.Join(s.UploadsPath, e.Name())
		text, ok := extractPNGLSB(path)
		if !ok || len(strings.TrimSpace(text)) == 0 {
			continue
		}
		s.CryptographyFindings = append(s.CryptographyFindings, &state.CryptographyFinding{
			DocumentID:     e.Name(),
			FindingType:    "steganography",
			Location:       "lsb:red-channel",
			DecodedPreview: truncate(text, 150),
			Confidence:     0.7,
			Algorithm:      "lsb",
		})
	}
}

// extractPNGLSB decodes the least significant bit of each pixel's red
// channel, row-major, into a byte stream, stopping at the first NUL
// terminator it finds (the conventional LSB payload delimiter).
func extractPNGLSB(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return "", false
	}
	bounds := img.Bounds()

	var bits []byte
	var out []byte
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			bits = append(bits, byte(r&1))
			if len(bits) == 8 {
				var b byte
				for _, bit := range bits {
					b = b<<1 | bit
				}
				if b == 0 {
					return string(out), true
				}
				out = append(out, b)
				bits = bits[:0]
				if len(out) > 4096 {
					return string(out), true
				}
			}
		}
	}
	return string(out), len(out) > 0
}
