package gribindex

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hrrr-inventory/internal/domain"
)

// ParseIndex reads a wgrib2-style ".idx" file:
//
//	71:47045389:d=2024050103:TMP:2 m above ground:1 hour fcst:
//
// Fields after the forecast time (ensemble or statistical qualifiers) are kept
// in the search key only.
func ParseIndex(r io.Reader) ([]domain.IndexEntry, error) {
	var entries []domain.IndexEntry

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return entries, nil
}

func parseLine(line string) (domain.IndexEntry, error) {
	fields := strings.Split(line, ":")
	if len(fields) < 6 {
		return domain.IndexEntry{}, fmt.Errorf("expected at least 6 fields, got %d in %q", len(fields), line)
	}

	msg, err := strconv.Atoi(fields[0])
	if err != nil || msg <= 0 {
		return domain.IndexEntry{}, fmt.Errorf("invalid message number %q", fields[0])
	}
	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || start < 0 {
		return domain.IndexEntry{}, fmt.Errorf("invalid start byte %q", fields[1])
	}
	refTime, err := time.Parse("2006010215", strings.TrimPrefix(fields[2], "d="))
	if err != nil {
		return domain.IndexEntry{}, fmt.Errorf("invalid reference time %q", fields[2])
	}
	if fields[3] == "" {
		return domain.IndexEntry{}, fmt.Errorf("empty variable in %q", line)
	}

	return domain.IndexEntry{
		GribMessage:   msg,
		StartByte:     start,
		ReferenceTime: refTime,
		Variable:      fields[3],
		Level:         fields[4],
		ForecastTime:  fields[5],
		SearchThis:    searchKey(fields[3:]),
	}, nil
}

// searchKey joins the descriptive fields as ":VAR:level:ftime[:extra...]",
// dropping empty fields such as the one produced by a trailing colon.
func searchKey(fields []string) string {
	var sb strings.Builder
	for _, f := range fields {
		if f == "" {
			continue
		}
		sb.WriteByte(':')
		sb.WriteString(f)
	}
	return sb.String()
}
