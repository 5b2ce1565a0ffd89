package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScheduleJSON = `{
  "schedule": {
    "conference": {
      "title": "PyCon DE 2025",
      "days": [
        {
          "date": "2025-04-23",
          "rooms": {
            "Main Hall": [
              {
                "guid": "talk-1",
                "title": "Opening Keynote",
                "track": "General",
                "type": "Keynote",
                "date": "2025-04-23",
                "start": "09:00",
                "duration": "00:45",
                "abstract": "Welcome to the conference.",
                "description": "<p>A look at the <b>year ahead</b>.</p>",
                "persons": [{"public_name": "Ada Example", "biography": "<p>Keynote speaker.</p>"}]
              },
              {
                "code": "RAG42",
                "title": "Retrieval Augmented Generation in Practice",
                "track": "Machine Learning",
                "date": "2025-04-23",
                "start": "11:00",
                "abstract": "Building RAG systems."
              }
            ],
            "Workshop Room": [
              {
                "title": "Go for Python Developers",
                "track": "Languages",
                "date": "2025-04-23",
                "start": "14:00"
              }
            ]
          }
        }
      ]
    }
  }
}`

func TestParseScheduleWrapped(t *testing.T) {
	sched, err := ParseSchedule([]byte(sampleScheduleJSON))
	require.NoError(t, err)
	assert.Equal(t, "PyCon DE 2025", sched.Title)
	require.Len(t, sched.Days, 1)
	assert.Len(t, sched.Days[0].Rooms, 2)
}

func TestParseScheduleBare(t *testing.T) {
	bare := `{"conference": {"title": "ConfX", "days": [{"date": "2025-01-01", "rooms": {"A": []}}]}}`
	sched, err := ParseSchedule([]byte(bare))
	require.NoError(t, err)
	assert.Equal(t, "ConfX", sched.Title)
}

func TestParseScheduleRejectsUnknownShape(t *testing.T) {
	_, err := ParseSchedule([]byte(`{"talks": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing days")

	_, err = ParseSchedule([]byte(`not json`))
	assert.Error(t, err)
}

func TestDocuments(t *testing.T) {
	sched, err := ParseSchedule([]byte(sampleScheduleJSON))
	require.NoError(t, err)

	docs := sched.Documents()
	require.Len(t, docs, 3)

	byID := map[string]Document{}
	for _, d := range docs {
		byID[d.ID] = d
	}

	keynote, ok := byID["talk-1"]
	require.True(t, ok, "guid wins as document id")
	assert.Equal(t, "Main Hall", keynote.Metadata["room"])
	assert.Equal(t, "09:00", keynote.Metadata["start"])
	assert.Contains(t, keynote.Content, "Opening Keynote")
	assert.Contains(t, keynote.Content, "A look at the year ahead.")
	assert.NotContains(t, keynote.Content, "<p>", "html stripped from descriptions")
	assert.Contains(t, keynote.Content, "Ada Example")

	_, ok = byID["RAG42"]
	assert.True(t, ok, "code is the fallback id")

	_, ok = byID["2025-04-23_Workshop Room_14:00"]
	assert.True(t, ok, "positional fallback id")
}

func TestOverview(t *testing.T) {
	sched, err := ParseSchedule([]byte(sampleScheduleJSON))
	require.NoError(t, err)

	overview := sched.Overview()
	assert.Contains(t, overview, "# PyCon DE 2025")
	assert.Contains(t, overview, "## 2025-04-23")
	assert.Contains(t, overview, "- 09:00 | Main Hall | General")
	assert.Contains(t, overview, "  Opening Keynote")
	assert.Contains(t, overview, "- 14:00 | Workshop Room | Languages")
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", stripHTML("plain text"))
	assert.Equal(t, "bold and linked", stripHTML("<b>bold</b> and <a href='x'>linked</a>"))
	assert.NotContains(t, stripHTML("<script>alert(1)</script>visible"), "alert")
	assert.Contains(t, stripHTML("<p>one</p><p>two</p>"), "one")
	assert.Contains(t, stripHTML("<p>one</p><p>two</p>"), "two")
}
