package engine

import (
	"regexp"
	"strings"

	"cadence/internal/model"
)

// The rich-text widget is an external collaborator that hands the engine
// plain content strings. The coupling between that content and the
// attachment list is made explicit here: inline media (folder=description)
// is referenced by URL inside the content, and an attachment whose URL is no
// longer referenced is an orphan to be deleted remotely and stripped
// locally. Explicit file attachments (folder=attachments) are never touched
// by content diffing.

var (
	htmlSrcPattern  = regexp.MustCompile(`(?i)src=["']([^"']+)["']`)
	mdImagePattern  = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)
	plainURLPattern = regexp.MustCompile(`https?://[^\s"'<>)]+`)
)

// extractMediaURLs returns every media URL the content still references.
func extractMediaURLs(content string) map[string]bool {
	refs := map[string]bool{}
	for _, m := range htmlSrcPattern.FindAllStringSubmatch(content, -1) {
		refs[m[1]] = true
	}
	for _, m := range mdImagePattern.FindAllStringSubmatch(content, -1) {
		refs[m[1]] = true
	}
	for _, m := range plainURLPattern.FindAllString(content, -1) {
		refs[strings.TrimRight(m, ".,;")] = true
	}
	return refs
}

// stripMediaReference removes inline references to url from content: whole
// <img> tags, markdown images and bare occurrences.
func stripMediaReference(content, url string) string {
	if url == "" {
		return content
	}
	quoted := regexp.QuoteMeta(url)
	tag := regexp.MustCompile(`(?i)<img[^>]*src=["']` + quoted + `["'][^>]*/?>`)
	content = tag.ReplaceAllString(content, "")
	md := regexp.MustCompile(`!\[[^\]]*\]\(` + quoted + `\)`)
	content = md.ReplaceAllString(content, "")
	return strings.ReplaceAll(content, url, "")
}

// orphanedAttachments returns description-folder attachments no longer
// referenced by content.
func orphanedAttachments(e Entity, content string) []string {
	refs := extractMediaURLs(content)
	var orphans []string
	for _, att := range e.Fields.Attachments {
		if att.Folder != model.FolderDescription {
			continue
		}
		if !refs[att.URL] {
			orphans = append(orphans, att.ID)
		}
	}
	return orphans
}
