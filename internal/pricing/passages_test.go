package pricing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head>
<title>Pricing</title>
<script>var tracking = "ignore me entirely, this is long enough to pass";</script>
<style>.price { color: red; font-size: 14px; margin: 0 auto; }</style>
</head><body>
<h1>Divvy pricing and membership options</h1>
<p>A monthly membership costs $18.10 per month and includes unlimited 45-minute classic rides.</p>
<p>Single rides start at $4.41 to unlock, which includes the first 30 minutes on a classic bike.</p>
<ul>
<li>E-bikes cost $0.44 per minute for non-members.</li>
<li>Members pay $0.17 per minute on e-bikes.</li>
</ul>
<span>ok</span>
<p>   A monthly membership costs $18.10 per month and includes unlimited 45-minute classic rides.   </p>
</body></html>`

func TestExtractPassages(t *testing.T) {
	t.Parallel()

	passages := ExtractPassages(samplePage, "https://example.com/pricing")
	require.NotEmpty(t, passages)

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
		assert.Equal(t, "https://example.com/pricing", p.Source)
	}

	assert.Contains(t, texts, "Divvy pricing and membership options")
	assert.Contains(t, texts, "A monthly membership costs $18.10 per month and includes unlimited 45-minute classic rides.")
	assert.Contains(t, texts, "E-bikes cost $0.44 per minute for non-members.")

	// Script and style subtrees never contribute.
	for _, text := range texts {
		assert.NotContains(t, text, "tracking")
		assert.NotContains(t, text, "font-size")
	}
}

func TestExtractPassagesBounds(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 200)
	page := "<p>tiny</p><p>" + long + "</p><p>A passage that is comfortably inside the bounds.</p>"

	passages := ExtractPassages(page, "src")
	require.Len(t, passages, 1)
	assert.Equal(t, "A passage that is comfortably inside the bounds.", passages[0].Text)
}

func TestExtractPassagesBoundsAreCharacters(t *testing.T) {
	t.Parallel()

	// Multi-byte text: 250 characters is in bounds even though it exceeds
	// 600 bytes, and 10 characters is below the minimum even though it
	// exceeds 25 bytes.
	inBounds := strings.Repeat("料", 250)
	tooShort := strings.Repeat("料", 10)
	page := "<p>" + inBounds + "</p><h2>" + tooShort + "</h2>"

	passages := ExtractPassages(page, "src")
	require.Len(t, passages, 1)
	assert.Equal(t, inBounds, passages[0].Text)
}

func TestExtractPassagesDeduplicates(t *testing.T) {
	t.Parallel()

	page := `<p>Exactly the same sentence appears twice here.</p><div>Exactly the same sentence appears twice here.</div>`
	passages := ExtractPassages(page, "src")
	assert.Len(t, passages, 1)
}

func TestExtractPassagesCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	page := "<p>Spread\n   across \t multiple   lines of markup text.</p>"
	passages := ExtractPassages(page, "src")
	require.Len(t, passages, 1)
	assert.Equal(t, "Spread across multiple lines of markup text.", passages[0].Text)
}
