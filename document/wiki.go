package document

import (
	"fmt"
	"regexp"
	"strings"
)

// ToWiki renders a tree as Jira wiki markup, the description format of
// REST v2 deployments.
func ToWiki(n Node) string {
	return markdownToWiki(ToMarkdown(n))
}

// FromWiki parses Jira wiki markup into a document.
func FromWiki(wiki string) Node {
	if strings.TrimSpace(wiki) == "" {
		return NewDoc()
	}
	return FromMarkdown(wikiToMarkdown(wiki))
}

var (
	mdCodeBlockRe  = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)\\n```")
	mdBoldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalicRe     = regexp.MustCompile(`(^|[^*\w])\*([^*\s][^*]*)\*([^*\w]|$)`)
	mdStrikeRe     = regexp.MustCompile(`~~([^~]+)~~`)
	mdInlineCodeRe = regexp.MustCompile("`([^`]+)`")
	mdLinkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdBulletRe     = regexp.MustCompile(`(?m)^([ \t]*)- (.+)$`)
	mdNumberedRe   = regexp.MustCompile(`(?m)^([ \t]*)\d+\. (.+)$`)
	mdRuleRe       = regexp.MustCompile(`(?m)^---+$`)
	mdHardBreakRe  = regexp.MustCompile(`\\\n`)
	mdHeadingRes   = headingPatterns(`(?m)^%s (.+)$`, func(i int) string { return strings.Repeat("#", i) })

	wikiCodeBlockRe  = regexp.MustCompile(`(?s)\{code(?::(\w+))?\}(.*?)\{code\}`)
	wikiNoformatRe   = regexp.MustCompile(`(?s)\{noformat\}(.*?)\{noformat\}`)
	wikiQuoteRe      = regexp.MustCompile(`(?s)\{quote\}(.*?)\{quote\}`)
	wikiBlockquoteRe = regexp.MustCompile(`(?m)^bq\. `)
	wikiInlineCodeRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	wikiBoldRe       = regexp.MustCompile(`\*([^*\n]+)\*`)
	wikiItalicRe     = regexp.MustCompile(`(^|[^\w])_([^_\n]+)_([^\w]|$)`)
	wikiStrikeRe     = regexp.MustCompile(`(^|\s)-([^-\s][^-\n]*[^-\s])-(\s|$|[.,;:!?])`)
	wikiLinkRe       = regexp.MustCompile(`\[([^|\]]+)\|([^\]]+)\]`)
	wikiPlainLinkRe  = regexp.MustCompile(`\[([^\]|]+)\]`)
	wikiMentionRe    = regexp.MustCompile(`\[~(?:accountid:)?([^\]]+)\]`)
	wikiBulletRe     = regexp.MustCompile(`(?m)^(\*+) (.+)$`)
	wikiNumberedRe   = regexp.MustCompile(`(?m)^(#+) (.+)$`)
	wikiRuleRe       = regexp.MustCompile(`(?m)^----+$`)
	wikiHeadingRes   = headingPatterns(`(?m)^h%s\. (.+)$`, func(i int) string { return fmt.Sprint(i) })

	// Inline {{monospace}} braces are hidden while code blocks are matched
	// so "{{code}}" never opens or closes a {code} block.
	hideInlineBraces = strings.NewReplacer("{{", "\x01", "}}", "\x02")
	showInlineBraces = strings.NewReplacer("\x01", "{{", "\x02", "}}")
)

func headingPatterns(format string, marker func(int) string) [7]*regexp.Regexp {
	var out [7]*regexp.Regexp
	for i := 1; i <= 6; i++ {
		out[i] = regexp.MustCompile(fmt.Sprintf(format, marker(i)))
	}
	return out
}

// markdownToWiki converts the Markdown produced by ToMarkdown to wiki
// markup. Code blocks are converted first so their bodies are left alone.
func markdownToWiki(markdown string) string {
	var code []string
	result := mdCodeBlockRe.ReplaceAllStringFunc(markdown, func(s string) string {
		m := mdCodeBlockRe.FindStringSubmatch(s)
		block := "{code}\n" + m[2] + "\n{code}"
		if m[1] != "" {
			block = "{code:" + m[1] + "}\n" + m[2] + "\n{code}"
		}
		code = append(code, block)
		return fmt.Sprintf("\x00%d\x00", len(code)-1)
	})

	for i := 6; i >= 1; i-- {
		result = mdHeadingRes[i].ReplaceAllString(result, fmt.Sprintf("h%d. $1", i))
	}

	// Italic before bold: *text* -> _text_, then **text** -> *text*.
	result = mdItalicRe.ReplaceAllString(result, `${1}_${2}_${3}`)
	result = mdBoldRe.ReplaceAllString(result, `*$1*`)
	result = mdStrikeRe.ReplaceAllString(result, `-$1-`)
	result = mdInlineCodeRe.ReplaceAllString(result, `{{$1}}`)
	result = mdHardBreakRe.ReplaceAllString(result, "\\\\\n")

	// Blockquote: > text -> {quote}text{quote}
	lines := strings.Split(result, "\n")
	var quoteLines []string
	var outputLines []string
	inQuote := false

	for _, line := range lines {
		if line == ">" || strings.HasPrefix(line, "> ") {
			if !inQuote {
				outputLines = append(outputLines, "{quote}")
				inQuote = true
			}
			quoteLines = append(quoteLines, strings.TrimPrefix(strings.TrimPrefix(line, ">"), " "))
		} else {
			if inQuote {
				outputLines = append(outputLines, strings.Join(quoteLines, "\n"), "{quote}")
				quoteLines = nil
				inQuote = false
			}
			outputLines = append(outputLines, line)
		}
	}
	if inQuote {
		outputLines = append(outputLines, strings.Join(quoteLines, "\n"), "{quote}")
	}
	result = strings.Join(outputLines, "\n")

	result = mdLinkRe.ReplaceAllString(result, `[$1|$2]`)

	// Lists: nesting depth comes from indentation (two spaces for bullets,
	// three for numbers as written by ToMarkdown).
	result = mdBulletRe.ReplaceAllStringFunc(result, func(s string) string {
		m := mdBulletRe.FindStringSubmatch(s)
		return strings.Repeat("*", len(m[1])/2+1) + " " + m[2]
	})
	result = mdNumberedRe.ReplaceAllStringFunc(result, func(s string) string {
		m := mdNumberedRe.FindStringSubmatch(s)
		return strings.Repeat("#", len(m[1])/3+1) + " " + m[2]
	})

	result = mdRuleRe.ReplaceAllString(result, `----`)

	for i, block := range code {
		result = strings.Replace(result, fmt.Sprintf("\x00%d\x00", i), block, 1)
	}
	return result
}

// wikiToMarkdown converts wiki markup to Markdown for FromMarkdown.
func wikiToMarkdown(wiki string) string {
	var code []string
	stash := func(lang, body string) string {
		body = showInlineBraces.Replace(strings.Trim(body, "\n"))
		code = append(code, "```"+lang+"\n"+body+"\n```")
		return fmt.Sprintf("\x00%d\x00", len(code)-1)
	}
	result := hideInlineBraces.Replace(strings.ReplaceAll(wiki, "\r\n", "\n"))
	result = wikiCodeBlockRe.ReplaceAllStringFunc(result, func(s string) string {
		m := wikiCodeBlockRe.FindStringSubmatch(s)
		return stash(m[1], m[2])
	})
	result = wikiNoformatRe.ReplaceAllStringFunc(result, func(s string) string {
		return stash("", wikiNoformatRe.FindStringSubmatch(s)[1])
	})
	result = showInlineBraces.Replace(result)

	// Blockquote before headers: {quote}text{quote} -> > text
	result = wikiQuoteRe.ReplaceAllStringFunc(result, func(s string) string {
		m := wikiQuoteRe.FindStringSubmatch(s)
		lines := strings.Split(strings.Trim(m[1], "\n"), "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n")
	})
	result = wikiBlockquoteRe.ReplaceAllString(result, "> ")

	// Lists before headers and bold, since both use * and # markers.
	result = wikiNumberedRe.ReplaceAllStringFunc(result, func(s string) string {
		m := wikiNumberedRe.FindStringSubmatch(s)
		return strings.Repeat("   ", len(m[1])-1) + "1. " + m[2]
	})
	result = wikiBulletRe.ReplaceAllStringFunc(result, func(s string) string {
		m := wikiBulletRe.FindStringSubmatch(s)
		return strings.Repeat("  ", len(m[1])-1) + "- " + m[2]
	})

	for i := 1; i <= 6; i++ {
		result = wikiHeadingRes[i].ReplaceAllString(result, strings.Repeat("#", i)+` $1`)
	}

	result = wikiInlineCodeRe.ReplaceAllString(result, "`$1`")
	result = wikiMentionRe.ReplaceAllString(result, "@$1")

	// Bold before italic: the single * written for italic must not be
	// read back as wiki bold.
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		lines[i] = wikiBoldRe.ReplaceAllString(line, `**$1**`)
	}
	result = strings.Join(lines, "\n")
	result = wikiItalicRe.ReplaceAllString(result, `${1}*${2}*${3}`)

	result = wikiStrikeRe.ReplaceAllString(result, `${1}~~${2}~~${3}`)
	result = wikiLinkRe.ReplaceAllString(result, `[$1]($2)`)

	// Plain links: [url] -> <url>
	result = wikiPlainLinkRe.ReplaceAllStringFunc(result, func(s string) string {
		url := strings.Trim(s, "[]")
		if strings.HasPrefix(url, "http") {
			return "<" + url + ">"
		}
		return s
	})

	result = wikiRuleRe.ReplaceAllString(result, `---`)
	result = strings.ReplaceAll(result, `\\`+"\n", "\\\n")

	for i, block := range code {
		result = strings.Replace(result, fmt.Sprintf("\x00%d\x00", i), block, 1)
	}
	return result
}
