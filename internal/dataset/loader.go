// Package dataset resolves a trip-log locator (local path, http(s) or ftp
// URL) and parses it into a header plus rows. CSV is the common case; .xlsx
// exports are read from their first sheet.
package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// Table is a parsed trip log: the header row plus all data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Loader resolves and parses trip-log locators.
type Loader struct {
	client     *http.Client
	ftpTimeout time.Duration
	userAgent  string
}

// NewLoader creates a Loader with sensible network defaults.
func NewLoader() *Loader {
	return &Loader{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		ftpTimeout: 30 * time.Second,
		userAgent:  "bikepass-cli/1.0",
	}
}

// Load resolves the locator, downloading remote sources to a temp file
// first, and parses the result. The temp file is removed before returning.
func (l *Loader) Load(ctx context.Context, locator string) (*Table, error) {
	path := locator
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		tmp, err := l.downloadHTTP(ctx, locator)
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.Remove(tmp) }()
		path = tmp
	case strings.HasPrefix(locator, "ftp://"):
		tmp, err := l.downloadFTP(ctx, locator)
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.Remove(tmp) }()
		path = tmp
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") || strings.EqualFold(filepath.Ext(locator), ".xlsx") {
		return parseXLSX(path)
	}
	return parseCSV(path)
}

func (l *Loader) downloadHTTP(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "dataset: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "dataset: download")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("dataset: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return spool(resp.Body, filepath.Ext(rawURL))
}

func (l *Loader) downloadFTP(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "dataset: parse ftp url")
	}
	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return "", eris.New("dataset: empty path in ftp url")
	}

	zap.L().Debug("dataset: ftp connect", zap.String("host", host), zap.String("path", u.Path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(l.ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", eris.Wrap(err, "dataset: ftp dial")
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return "", eris.Wrap(err, "dataset: ftp login")
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return "", eris.Wrap(err, "dataset: ftp retrieve")
	}
	defer func() { _ = resp.Close() }()

	return spool(resp, filepath.Ext(u.Path))
}

// spool writes a remote body to a temp file, preserving the extension so the
// parser can tell xlsx from csv.
func spool(r io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp("", "bikepass-trips-*"+ext)
	if err != nil {
		return "", eris.Wrap(err, "dataset: create temp file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", eris.Wrap(err, "dataset: write temp file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", eris.Wrap(err, "dataset: close temp file")
	}
	return f.Name(), nil
}

func parseCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open csv")
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged exports

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("dataset: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read row")
		}
		rows = append(rows, record)
	}

	return &Table{Header: header, Rows: rows}, nil
}

func parseXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("dataset: empty file")
	}

	toStrings := func(row *xlsx.Row) []string {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = strings.TrimSpace(cell.String())
		}
		return cells
	}

	header := toStrings(sheet.Rows[0])
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, toStrings(row))
	}

	return &Table{Header: header, Rows: rows}, nil
}
