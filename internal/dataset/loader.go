// Package dataset moves meetings and tasks in and out of spreadsheets.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MeetingRow is one importable meeting from a sheet.
type MeetingRow struct {
	Row      int    `json:"row"`
	Title    string `json:"title"`
	AudioRef string `json:"audio_ref"`
}

// LoadMeetings reads the first sheet and detects the title and audio columns
// by header heuristics. Rows without an audio reference are skipped.
func LoadMeetings(path string) ([]MeetingRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	audioIdx, titleIdx := detectColumns(rows[0])
	if audioIdx == -1 {
		return nil, fmt.Errorf("no audio column in header %q", rows[0])
	}

	var out []MeetingRow
	for i, r := range rows[1:] {
		rec := MeetingRow{Row: i + 2}
		if audioIdx < len(r) {
			rec.AudioRef = strings.TrimSpace(r[audioIdx])
		}
		if titleIdx >= 0 && titleIdx < len(r) {
			rec.Title = strings.TrimSpace(r[titleIdx])
		}
		if rec.AudioRef == "" {
			continue
		}
		if rec.Title == "" {
			rec.Title = titleFromRef(rec.AudioRef)
		}
		out = append(out, rec)
	}
	return out, nil
}

func detectColumns(header []string) (audioIdx, titleIdx int) {
	audioIdx, titleIdx = -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "record") || strings.Contains(l, "file") || strings.Contains(l, "url") || strings.Contains(l, "link"):
			if audioIdx == -1 {
				audioIdx = i
			}
		case strings.Contains(l, "title") || strings.Contains(l, "subject") || strings.Contains(l, "meeting") || strings.Contains(l, "name"):
			if titleIdx == -1 {
				titleIdx = i
			}
		}
	}
	// single unnamed column: treat it as the audio reference
	if audioIdx == -1 && len(header) == 1 {
		audioIdx = 0
	}
	return audioIdx, titleIdx
}

func titleFromRef(ref string) string {
	base := filepath.Base(strings.TrimRight(ref, "/"))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
