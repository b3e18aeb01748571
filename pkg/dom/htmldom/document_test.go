package htmldom

import (
	"testing"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<!DOCTYPE html>
<html data-mw-viewport="1024 768" data-mw-url="https://mail.google.com/mail/u/0/#inbox">
<head><title>Inbox</title><script>var x = "not text";</script></head>
<body>
  <div role="main" data-mw-rect="0 0 1024 700">
    <div class="msg" data-message-id="1">
      <span email="a@x.com">Alice</span>
      <div dir="ltr">Can we meet <b>Tuesday</b>?<br>Thanks</div>
    </div>
    <div class="msg" data-message-id="2" hidden>
      <div dir="ltr">Hidden body text</div>
    </div>
    <p>First paragraph</p><p>Second   paragraph</p>
  </div>
</body>
</html>`

func parseFixture(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(fixture)
	require.NoError(t, err)
	return doc
}

func TestParse_Annotations(t *testing.T) {
	doc := parseFixture(t)
	assert.Equal(t, dom.Viewport{Width: 1024, Height: 768}, doc.Viewport())
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox", doc.URL())
	assert.Equal(t, "html", doc.Root().TagName())
	assert.Equal(t, "body", doc.Body().TagName())

	doc, err := ParseString("<p>x</p>", WithURL("https://outlook.office.com/mail/"), WithViewport(dom.Viewport{Width: 10, Height: 10}))
	require.NoError(t, err)
	assert.Equal(t, "https://outlook.office.com/mail/", doc.URL())
	assert.Equal(t, dom.Viewport{Width: 10, Height: 10}, doc.Viewport())
}

func TestQuerySelectorAll(t *testing.T) {
	doc := parseFixture(t)

	msgs, err := doc.Root().QuerySelectorAll("div[data-message-id]")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	id, ok := msgs[0].Attribute("data-message-id")
	assert.True(t, ok)
	assert.Equal(t, "1", id)

	// Identity is stable across queries
	again, err := doc.Root().QuerySelectorAll("div[data-message-id]")
	require.NoError(t, err)
	assert.True(t, msgs[0].SameNode(again[0]))
	assert.False(t, msgs[0].SameNode(again[1]))

	_, err = doc.Root().QuerySelectorAll("div[")
	assert.Error(t, err)

	// Scoped queries only see descendants
	senders, err := msgs[1].QuerySelectorAll("span[email]")
	require.NoError(t, err)
	assert.Empty(t, senders)
}

func TestClosestAndParent(t *testing.T) {
	doc := parseFixture(t)
	span, err := dom.QueryFirst(doc.Root(), "span[email]")
	require.NoError(t, err)
	require.NotNil(t, span)

	msg, err := span.Closest("div[data-message-id]")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, msg.SameNode(span.Parent()))

	none, err := span.Closest("table")
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.Len(t, dom.Ancestors(span, 3), 3)
	assert.Nil(t, doc.Root().Parent())
}

func TestText(t *testing.T) {
	doc := parseFixture(t)
	body, err := dom.QueryFirst(doc.Root(), `div[dir="ltr"]`)
	require.NoError(t, err)

	assert.Equal(t, "Can we meet Tuesday?\nThanks", body.InnerText())
	assert.Equal(t, "Can we meet Tuesday?Thanks", body.TextContent())

	main, err := dom.QueryFirst(doc.Root(), `div[role="main"]`)
	require.NoError(t, err)
	text := main.InnerText()
	assert.NotContains(t, text, "Hidden body text")
	assert.Contains(t, text, "First paragraph\n\nSecond paragraph")

	assert.Contains(t, doc.Root().TextContent(), "not text")
	assert.NotContains(t, doc.Root().InnerText(), "not text")
}

func TestBoundingBox(t *testing.T) {
	doc := parseFixture(t)

	main, _ := dom.QueryFirst(doc.Root(), `div[role="main"]`)
	assert.Equal(t, dom.Rect{Width: 1024, Height: 700}, main.BoundingBox())

	span, _ := dom.QueryFirst(doc.Root(), "span[email]")
	assert.Equal(t, dom.Rect{Width: 1, Height: 1}, span.BoundingBox())

	hidden, _ := dom.QueryFirst(doc.Root(), `div[data-message-id="2"] div`)
	assert.True(t, hidden.BoundingBox().Empty())

	el := span.(*Element)
	el.SetRect(dom.Rect{X: 5, Y: 6, Width: 7, Height: 8})
	assert.Equal(t, dom.Rect{X: 5, Y: 6, Width: 7, Height: 8}, span.BoundingBox())
}

func TestMutations(t *testing.T) {
	doc := parseFixture(t)
	main, _ := dom.QueryFirst(doc.Root(), `div[role="main"]`)

	added, err := main.AppendHTML(`<div id="a">one</div><div id="b">two</div>`)
	require.NoError(t, err)
	require.NotNil(t, added)
	id, _ := added.Attribute("id")
	assert.Equal(t, "a", id)
	assert.True(t, added.IsConnected())

	after, err := added.InsertHTMLAfter(`<section id="c"></section>`)
	require.NoError(t, err)
	next, _ := dom.QueryFirst(main, "#a + section")
	require.NotNil(t, next)
	assert.True(t, after.SameNode(next))

	require.NoError(t, added.SetAttribute("data-x", "1"))
	v, ok := added.Attribute("data-x")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	require.NoError(t, added.RemoveAttribute("data-x"))
	_, ok = added.Attribute("data-x")
	assert.False(t, ok)

	require.NoError(t, added.SetTextContent("<b>literal</b>"))
	assert.Equal(t, "<b>literal</b>", added.TextContent())

	require.NoError(t, added.SetInnerHTML("<p>Hi &amp; bye</p>"))
	assert.Equal(t, "Hi & bye", added.InnerText())

	require.NoError(t, added.Focus())
	assert.True(t, doc.Focused().SameNode(added))

	require.NoError(t, added.Remove())
	assert.False(t, added.IsConnected())
	assert.True(t, added.BoundingBox().Empty())
	assert.ErrorIs(t, added.Focus(), dom.ErrDetached)
	assert.Greater(t, doc.Mutations(), 0)
}
