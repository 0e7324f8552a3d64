package cryptanalysis

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlock-intel/engine/internal/state"
)

func TestStageDetectsBase64Segment(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	payload := base64.StdEncoding.EncodeToString([]byte("this is a secret note about the wire transfer"))
	s.ExtractedText["d1"] = "See encoded attachment: " + payload + " end."

	require.NoError(t, Stage(context.Background(), s))

	var found *state.CryptoSegment
	for _, seg := range s.CryptoSegments {
		if seg.CryptoType == state.CryptoBase64 {
			found = seg
		}
	}
	require.NotNil(t, found)
	assert.Contains(t, found.DecodedContent, "secret note")
	assert.Equal(t, 0.95, found.Confidence)
}

func TestStageDetectsHexSegment(t *testing.T) {
	s := state.NewInvestigationState("inv", "/tmp", state.DefaultConfig())
	s.ExtractedText["d1"] = "raw bytes: 68656c6c6f776f726c646162636465 tail"

	require.NoError(t, Stage(context.Background(), s))

	found := false
	for _, seg := range s.CryptoSegments {
		if seg.CryptoType == state.CryptoHex {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBestCaesarShiftRecoversKnownShift(t *testing.T) {
	plaintext := "thequickbrownfoxjumpsoverthelazydogandrunsawayintothedarkforest"
	ciphertext := caesarDecode(plaintext, -3) // shift +3 to encode

	shift, decoded, corr := bestCaesarShift(ciphertext)
	assert.Equal(t, 3, shift)
	assert.Equal(t, plaintext, decoded)
	assert.Greater(t, corr, 0.4)
}

func TestTryBase64DecodeRejectsNonPrintable(t *testing.T) {
	_, ok := tryBase64Decode("////////////////////")
	assert.False(t, ok)
}
