package listing

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

// snippetLimit caps diagnostic excerpts, in runes.
const snippetLimit = 240

// newSnippetConverter builds the Markdown converter used for block
// excerpts. The base plugin drops script/style/noscript noise.
func newSnippetConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
}

// snippet converts a block's outer HTML to single-line Markdown and
// truncates it. Conversion failures fall back to an empty excerpt.
func snippet(conv *converter.Converter, outerHTML string) string {
	md, err := conv.ConvertString(outerHTML)
	if err != nil {
		return ""
	}
	md = strings.Join(strings.Fields(md), " ")
	r := []rune(md)
	if len(r) > snippetLimit {
		return string(r[:snippetLimit]) + "…"
	}
	return md
}
