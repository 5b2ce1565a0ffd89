// Package rag builds and queries the per-session retrieval index over an
// uploaded conference schedule.
package rag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	maxDescriptionLen = 4000
	maxBiographyLen   = 1500
)

// Document is one searchable unit of the schedule index.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

type Person struct {
	PublicName string `json:"public_name"`
	Name       string `json:"name"`
	Biography  string `json:"biography"`
}

type Talk struct {
	GUID        string   `json:"guid"`
	Code        string   `json:"code"`
	ID          any      `json:"id"`
	Title       string   `json:"title"`
	Track       string   `json:"track"`
	Type        string   `json:"type"`
	Room        string   `json:"room"`
	Date        string   `json:"date"`
	Start       string   `json:"start"`
	Duration    string   `json:"duration"`
	Abstract    string   `json:"abstract"`
	Description string   `json:"description"`
	Persons     []Person `json:"persons"`
}

type Day struct {
	Date  string            `json:"date"`
	Rooms map[string][]Talk `json:"rooms"`
}

// Schedule is the parsed shape of a pretalx-style schedule export.
type Schedule struct {
	Title string
	Days  []Day
}

type scheduleJSON struct {
	Schedule *scheduleBody `json:"schedule"`
	scheduleBody
}

type scheduleBody struct {
	Conference *struct {
		Title string `json:"title"`
		Days  []Day  `json:"days"`
	} `json:"conference"`
	Days []Day `json:"days"`
}

// ParseSchedule decodes pretalx-style schedule JSON, accepting both the
// wrapped ({"schedule": {...}}) and bare forms.
func ParseSchedule(data []byte) (*Schedule, error) {
	var raw scheduleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid schedule JSON: %w", err)
	}
	body := raw.scheduleBody
	if raw.Schedule != nil {
		body = *raw.Schedule
	}
	out := &Schedule{Title: "Conference"}
	if body.Conference != nil {
		if body.Conference.Title != "" {
			out.Title = body.Conference.Title
		}
		out.Days = body.Conference.Days
	}
	if len(out.Days) == 0 {
		out.Days = body.Days
	}
	if len(out.Days) == 0 {
		return nil, fmt.Errorf("not a recognized schedule format (missing days)")
	}
	return out, nil
}

// Documents flattens the schedule into one searchable document per talk.
func (s *Schedule) Documents() []Document {
	var out []Document
	for _, day := range s.Days {
		for room, talks := range day.Rooms {
			for _, talk := range talks {
				id := talk.GUID
				if id == "" {
					id = talk.Code
				}
				if id == "" && talk.ID != nil {
					id = fmt.Sprint(talk.ID)
				}
				if id == "" {
					id = fmt.Sprintf("%s_%s_%s", day.Date, room, talk.Start)
				}
				out = append(out, Document{
					ID:      id,
					Content: talkText(talk, room),
					Metadata: map[string]string{
						"room":  room,
						"date":  day.Date,
						"start": talk.Start,
						"track": talk.Track,
						"title": clipString(talk.Title, 200),
					},
				})
			}
		}
	}
	return out
}

// Overview renders a compact human-readable listing of all sessions
// (title, time, room, track).
func (s *Schedule) Overview() string {
	lines := []string{"# " + s.Title, ""}
	for _, day := range s.Days {
		lines = append(lines, "## "+day.Date, "")
		rooms := make([]string, 0, len(day.Rooms))
		for room := range day.Rooms {
			rooms = append(rooms, room)
		}
		sort.Strings(rooms)
		for _, room := range rooms {
			for _, talk := range day.Rooms[room] {
				lines = append(lines, fmt.Sprintf("- %s | %s | %s", talk.Start, room, talk.Track))
				lines = append(lines, "  "+talk.Title)
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// talkText renders one talk into a searchable text block. Descriptions in
// pretalx exports often carry HTML markup; it is stripped before indexing.
func talkText(talk Talk, room string) string {
	if talk.Room != "" {
		room = talk.Room
	}
	parts := []string{
		"Title: " + talk.Title,
		"Track: " + talk.Track,
		"Type: " + talk.Type,
		"Room: " + room,
		"Date: " + talk.Date,
		"Start: " + talk.Start,
		"Duration: " + talk.Duration,
		"Abstract: " + stripHTML(talk.Abstract),
		"Description: " + clipString(stripHTML(talk.Description), maxDescriptionLen),
	}
	for i, p := range talk.Persons {
		name := p.PublicName
		if name == "" {
			name = p.Name
		}
		parts = append(parts, fmt.Sprintf("Speaker %d: %s", i+1, name))
		if p.Biography != "" {
			parts = append(parts, "  Biography: "+clipString(stripHTML(p.Biography), maxBiographyLen))
		}
	}
	return strings.Join(parts, "\n")
}

func clipString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
