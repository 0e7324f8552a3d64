package ingestion

import (
	"os/exec"
	"sync"
)

// capability models an optional external tool or library the extraction
// pipeline can use when present, and gracefully degrades without when
// absent (spec §9 "Third-party capabilities"; SPEC_FULL.md §4.2).
type capability struct {
	name      string
	available bool
}

var (
	tesseractOnce sync.Once
	tesseractCap  capability
)

// tesseractCapability probes once for the tesseract OCR binary on PATH.
func tesseractCapability() capability {
	tesseractOnce.Do(func() {
		_, err := exec.LookPath("tesseract")
		tesseractCap = capability{name: "tesseract", available: err == nil}
	})
	return tesseractCap
}
