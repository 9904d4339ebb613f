package activity

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

var csvHeader = []string{"Timestamp", "User", "Email", "Action", "Resource Type", "Resource ID", "IP Address", "Details"}

const (
	unknownUser  = "Unknown"
	notAvailable = "N/A"
)

// WriteCSV renders views as CSV with a header row.
func WriteCSV(w io.Writer, views []View) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("activity export: write header: %w", err)
	}

	for _, view := range views {
		record := []string{
			view.CreatedAt.UTC().Format(time.RFC3339),
			orDefault(view.UserName, unknownUser),
			orDefault(view.UserEmail, notAvailable),
			view.Action,
			orDefault(view.ResourceType, notAvailable),
			orDefault(view.ResourceID, notAvailable),
			orDefault(view.IPAddress, notAvailable),
			compactDetails(view.Details),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("activity export: write row %s: %w", view.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportFilename names an export produced at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("activity-logs-%s.csv", t.UTC().Format("2006-01-02"))
}

func compactDetails(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return notAvailable
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
