package mech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks_DocumentOrder(t *testing.T) {
	content := []byte(`
	<html><body>
		<a href="/a">First</a>
		<map><area href="/map" alt="zone"></map>
		<iframe src="/frame" name="inner"></iframe>
		<a href="/b">Second</a>
	</body></html>`)

	links := ExtractLinks(content)
	require.Len(t, links, 4)

	assert.Equal(t, "/a", links[0].URL)
	assert.Equal(t, "First", links[0].Text)
	assert.Equal(t, TagAnchor, links[0].Tag)

	assert.Equal(t, "/map", links[1].URL)
	assert.Equal(t, TagArea, links[1].Tag)
	assert.False(t, links[1].HasText())

	assert.Equal(t, "/frame", links[2].URL)
	assert.Equal(t, TagIframe, links[2].Tag)
	assert.Equal(t, "inner", links[2].Name)

	assert.Equal(t, "/b", links[3].URL)
	assert.Equal(t, "Second", links[3].Text)
}

func TestExtractLinks_SkipsTagsWithoutURLAttribute(t *testing.T) {
	// A named anchor with no href is not a link, and skipping it must not
	// shift the ordering of subsequent links.
	content := []byte(`
		<a name="top"></a>
		<a href="/one">One</a>
		<frame name="menu">
		<a href="/two">Two</a>`)

	links := ExtractLinks(content)
	require.Len(t, links, 2)
	assert.Equal(t, "/one", links[0].URL)
	assert.Equal(t, "/two", links[1].URL)
}

func TestExtractLinks_DuplicateURLsPreserved(t *testing.T) {
	content := []byte(`<a href="/same">First</a><a href="/same">Second</a>`)

	links := ExtractLinks(content)
	require.Len(t, links, 2)
	assert.Equal(t, "First", links[0].Text)
	assert.Equal(t, "Second", links[1].Text)
}

func TestExtractLinks_AnchorText(t *testing.T) {
	content := []byte(`
		<a href="/markup">Text <b>with</b> markup</a>
		<a href="/spaced">
			padded
		</a>
		<a href="/empty"></a>
		<a href="/named" name="anchor1">Named</a>`)

	links := ExtractLinks(content)
	require.Len(t, links, 4)

	assert.Equal(t, "Text with markup", links[0].Text)
	assert.Equal(t, "padded", links[1].Text)

	// Empty anchor text is the empty string, and the anchor still has text
	// for matching purposes.
	assert.Equal(t, "", links[2].Text)
	assert.True(t, links[2].HasText())

	assert.Equal(t, "anchor1", links[3].Name)
}

func TestExtractLinks_FrameSrc(t *testing.T) {
	content := []byte(`
		<frameset>
			<frame src="/top" name="banner">
			<frame src="/nav">
		</frameset>`)

	links := ExtractLinks(content)
	require.Len(t, links, 2)
	assert.Equal(t, TagFrame, links[0].Tag)
	assert.Equal(t, "/top", links[0].URL)
	assert.Equal(t, "banner", links[0].Name)
	assert.Equal(t, "/nav", links[1].URL)
}

func TestExtractLinks_NoContent(t *testing.T) {
	assert.Empty(t, ExtractLinks(nil))
	assert.Empty(t, ExtractLinks([]byte("plain text, no markup")))
}
