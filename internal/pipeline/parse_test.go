package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCritique(t *testing.T) {
	c, ok := parseCritique("CONFIDENCE: low\nISSUES: relies on a single blog\npost with no data\nVERDICT: UNRELIABLE")
	require.True(t, ok)
	assert.Equal(t, ConfidenceLow, c.confidence)
	assert.Equal(t, "relies on a single blog post with no data", c.issues)
	assert.Equal(t, "UNRELIABLE", c.rating)

	c, ok = parseCritique("Here you go:\nCONFIDENCE: HIGH\nISSUES:\nVERDICT: Reliable.")
	require.True(t, ok)
	assert.Equal(t, "RELIABLE", c.rating)
	assert.Equal(t, "None", c.issues)

	_, ok = parseCritique("I think it is fine.")
	assert.False(t, ok)
}

func TestParseClaims(t *testing.T) {
	text := `CLAIM: Attention replaces recurrence
STATUS: SUPPORTED
REASON: the paper says so
and shows benchmarks
---
CLAIM: Training is cheaper
STATUS: DISPUTED
REASON: costs vary
CLAIM: A third claim without separator
STATUS: VERIFIED
---
STATUS: orphan status`

	claims := parseClaims(text)
	require.Len(t, claims, 3)
	assert.Equal(t, "Attention replaces recurrence", claims[0].text)
	assert.False(t, claims[0].disputed)
	assert.Equal(t, "the paper says so and shows benchmarks", claims[0].reason)
	assert.True(t, claims[1].disputed)
	assert.Equal(t, "A third claim without separator", claims[2].text)
}

func TestCitedLabels(t *testing.T) {
	answer := "First [Source 2]. Then [Source 1, Source 3][source 2] and [1] and [Source  10]."
	assert.Equal(t, []string{"Source 2", "Source 1", "Source 3", "Source 10"}, citedLabels(answer))
	assert.Empty(t, citedLabels("no citations here"))
}

func sc(label, text string, disputed bool) sourcedClaim {
	return sourcedClaim{label: label, extractedClaim: extractedClaim{text: text, disputed: disputed}}
}

func TestClassifyClaimsThreshold(t *testing.T) {
	claims := []sourcedClaim{
		sc("Source 1", "Transformers rely on self attention", false),
		sc("Source 2", "Transformers rely heavily on self attention", false),
		sc("Source 1", "Training requires large datasets", false),
		sc("Source 1", "Transformers rely on self attention.", false),
	}

	got := classifyClaims(claims, 2)
	require.Len(t, got, 2)
	assert.Equal(t, ClaimVerified, got[0].Status)
	assert.Equal(t, []string{"Source 1", "Source 2"}, got[0].SupportingSources)
	assert.Equal(t, ClaimUnresolved, got[1].Status, "one source is not enough")

	got = classifyClaims(claims, 3)
	assert.Equal(t, ClaimUnresolved, got[0].Status, "same source twice counts once")
}

func TestClassifyClaimsDisputed(t *testing.T) {
	marked := classifyClaims([]sourcedClaim{
		sc("Source 1", "Coffee improves long term memory", false),
		sc("Source 2", "Coffee improves long term memory", true),
	}, 2)
	require.Len(t, marked, 1)
	assert.Equal(t, ClaimDisputed, marked[0].Status)

	negated := classifyClaims([]sourcedClaim{
		sc("Source 1", "Coffee improves long term memory", false),
		sc("Source 3", "Coffee does not improve long term memory", false),
	}, 2)
	require.Len(t, negated, 1)
	assert.Equal(t, ClaimDisputed, negated[0].Status)

	lone := classifyClaims([]sourcedClaim{sc("Source 1", "Coffee improves memory", true)}, 2)
	assert.Equal(t, ClaimUnresolved, lone[0].Status)
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "FactCheck", StageFactCheck.String())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageSynthesize.Terminal())
	assert.Equal(t, "Unknown", Stage(42).String())
}
