package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cadence/internal/model"
)

func TestExtractMediaURLs(t *testing.T) {
	content := `<p>intro</p>
<img src="http://blobs.local/a.png" alt="a">
<IMG SRC='http://blobs.local/b.jpg'>
![diagram](http://blobs.local/c.svg)
see also http://blobs.local/d.pdf.`

	refs := extractMediaURLs(content)
	assert.True(t, refs["http://blobs.local/a.png"])
	assert.True(t, refs["http://blobs.local/b.jpg"], "matching is case-insensitive on the tag")
	assert.True(t, refs["http://blobs.local/c.svg"])
	assert.True(t, refs["http://blobs.local/d.pdf"], "trailing punctuation is not part of the URL")
	assert.False(t, refs["http://blobs.local/absent.png"])
}

func TestExtractMediaURLs_Empty(t *testing.T) {
	assert.Empty(t, extractMediaURLs(""))
	assert.Empty(t, extractMediaURLs("plain text, no media at all"))
}

func TestStripMediaReference(t *testing.T) {
	url := "http://blobs.local/fig.png"

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "html img tag",
			content: `before <img src="` + url + `" alt="fig"> after`,
			want:    "before  after",
		},
		{
			name:    "self-closing tag",
			content: `<img src='` + url + `'/>tail`,
			want:    "tail",
		},
		{
			name:    "markdown image",
			content: `![fig](` + url + `) rest`,
			want:    " rest",
		},
		{
			name:    "bare url",
			content: "link: " + url,
			want:    "link: ",
		},
		{
			name:    "other media untouched",
			content: `<img src="http://blobs.local/other.png">`,
			want:    `<img src="http://blobs.local/other.png">`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMediaReference(tt.content, url))
		})
	}
}

func TestStripMediaReference_EmptyURL(t *testing.T) {
	assert.Equal(t, "unchanged", stripMediaReference("unchanged", ""))
}

func TestOrphanedAttachments(t *testing.T) {
	ent := Entity{Fields: model.RecurringTask{Attachments: []model.Attachment{
		{ID: "a1", URL: "http://blobs.local/kept.png", Folder: model.FolderDescription},
		{ID: "a2", URL: "http://blobs.local/dropped.png", Folder: model.FolderDescription},
		{ID: "a3", URL: "http://blobs.local/file.pdf", Folder: model.FolderAttachments},
	}}}

	orphans := orphanedAttachments(ent, `<img src="http://blobs.local/kept.png">`)
	assert.Equal(t, []string{"a2"}, orphans,
		"only unreferenced description-folder media counts; explicit files never do")
}

func TestOrphanedAttachments_EmptyContent(t *testing.T) {
	ent := Entity{Fields: model.RecurringTask{Attachments: []model.Attachment{
		{ID: "a1", URL: "http://blobs.local/x.png", Folder: model.FolderDescription},
	}}}
	assert.Equal(t, []string{"a1"}, orphanedAttachments(ent, ""))
	assert.Empty(t, orphanedAttachments(Entity{}, ""))
}
