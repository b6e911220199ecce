package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lox/sunburntimer/internal/models"
)

const SourceFTP = "ftp"

// FTPSource reads an hourly UV series from a CSV file published on an FTP server.
// Rows are "timestamp,uvi" where timestamp is RFC 3339 or unix seconds.
type FTPSource struct {
	addr     string
	user     string
	password string
	path     string
	timeout  time.Duration
}

func NewFTPSource(addr, user, password, path string, timeout time.Duration) *FTPSource {
	if user == "" {
		user = "anonymous"
		password = "anonymous"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FTPSource{addr: addr, user: user, password: password, path: path, timeout: timeout}
}

func (f *FTPSource) Path() string {
	return f.path
}

func (f *FTPSource) Fetch(ctx context.Context) ([]models.HourlyUV, []byte, *FetchResult, error) {
	result := &FetchResult{}

	conn, err := ftp.Dial(f.addr, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, nil, result, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(f.user, f.password); err != nil {
		return nil, nil, result, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(f.path)
	if err != nil {
		return nil, nil, result, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, nil, result, fmt.Errorf("read body: %w", err)
	}
	result.ResponseSize = len(body)

	hourly, parseErrors, err := ParseUVCSV(bytes.NewReader(body))
	if err != nil {
		return nil, body, result, err
	}
	result.RecordCount = len(hourly)
	if len(parseErrors) > 0 {
		result.ParseErrors = len(parseErrors)
		result.ParseError = fmt.Sprintf("%d parse errors: %v", len(parseErrors), parseErrors[0])
	}
	return hourly, body, result, nil
}

// ParseUVCSV reads "timestamp,uvi" rows. A header row and blank lines are skipped; rows that
// fail to parse are reported in the returned slice and otherwise ignored.
func ParseUVCSV(r io.Reader) ([]models.HourlyUV, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var (
		hourly      []models.HourlyUV
		parseErrors []string
		line        int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		if len(record) < 2 {
			parseErrors = append(parseErrors, fmt.Sprintf("line %d: want 2 fields, got %d", line, len(record)))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "timestamp") {
			continue
		}

		ts, err := parseTimestamp(strings.TrimSpace(record[0]))
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		uvi, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("line %d: uvi %q: %v", line, record[1], err))
			continue
		}
		hourly = append(hourly, models.HourlyUV{Time: ts, UVIndex: clampUV(uvi)})
	}

	sort.Slice(hourly, func(i, j int) bool { return hourly[i].Time.Before(hourly[j].Time) })
	return hourly, parseErrors, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
