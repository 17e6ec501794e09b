package reporter

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

type sheetsReporter struct {
	client        *http.Client
	basePath      string
	spreadsheetID string
	values        [][]interface{}
}

// NewSheetsReporterWithCredential creates a reporter to append summary rows
// to a spreadsheet with a JSON service account credential.
func NewSheetsReporterWithCredential(
	ctx context.Context, cred, spreadsheetID string,
) (Reporter, error) {
	buf, err := ioutil.ReadFile(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %s", err)
	}
	conf, err := google.JWTConfigFromJSON(buf, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential: %s", err)
	}
	return NewSheetsReporterWithClient(
		conf.Client(ctx), "", spreadsheetID), nil
}

// NewSheetsReporter creates a reporter to append summary rows to a
// spreadsheet with the default credential.
func NewSheetsReporter(
	ctx context.Context, spreadsheetID string,
) (Reporter, error) {
	client, err := google.DefaultClient(ctx, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}
	return NewSheetsReporterWithClient(client, "", spreadsheetID), nil
}

// NewSheetsReporterWithClient creates a reporter using an authorized client.
// An empty basePath selects the public Sheets endpoint.
func NewSheetsReporterWithClient(
	client *http.Client, basePath, spreadsheetID string,
) Reporter {
	return &sheetsReporter{
		client:        client,
		basePath:      basePath,
		spreadsheetID: spreadsheetID,
	}
}

func (r *sheetsReporter) Log(ctx context.Context, msg string) {
	row := []interface{}{}
	for _, cell := range strings.Split(msg, "\t") {
		row = append(row, cell)
	}
	r.values = append(r.values, row)
}

func (r *sheetsReporter) Flush(ctx context.Context) error {
	if len(r.values) == 0 {
		return nil
	}
	svc, err := sheets.New(r.client)
	if err != nil {
		return fmt.Errorf("failed to get sheets client: %s", err)
	}
	if r.basePath != "" {
		svc.BasePath = r.basePath
	}
	_, err = svc.Spreadsheets.Values.Append(
		r.spreadsheetID, "A1", &sheets.ValueRange{Values: r.values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append rows: %s", err)
	}
	r.values = nil
	return nil
}
