package collector

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ExportFormat represents the export format
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// Exporter writes confirmation reports to disk
type Exporter struct {
	outputDir string
	now       func() time.Time
}

// NewExporter creates a new Exporter
func NewExporter(outputDir string) *Exporter {
	return &Exporter{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Export exports the report to the specified format
func (e *Exporter) Export(report *Report, format ExportFormat) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := e.now().Format("20060102_150405")

	switch format {
	case FormatJSON:
		return e.exportJSON(report, timestamp)
	case FormatCSV:
		return e.exportCSV(report, timestamp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// exportJSON exports the report as JSON
func (e *Exporter) exportJSON(report *Report, timestamp string) (string, error) {
	filename := filepath.Join(e.outputDir, fmt.Sprintf("receipts_%s.json", timestamp))

	data, err := json.MarshalIndent(NewJSONReport(report), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return filename, nil
}

// JSONReport is a JSON-serializable version of Report
type JSONReport struct {
	Name         string            `json:"name"`
	StartTime    string            `json:"start_time"`
	EndTime      string            `json:"end_time"`
	Duration     string            `json:"duration"`
	Summary      JSONSummary       `json:"summary"`
	Latency      JSONLatency       `json:"latency"`
	Transactions []JSONTransaction `json:"transactions"`
}

// JSONSummary is a JSON-serializable summary
type JSONSummary struct {
	TotalSent      int     `json:"total_sent"`
	TotalConfirmed int     `json:"total_confirmed"`
	TotalFailed    int     `json:"total_failed"`
	TotalExpired   int     `json:"total_expired"`
	TotalTimeout   int     `json:"total_timeout"`
	TotalPending   int     `json:"total_pending"`
	SuccessRate    float64 `json:"success_rate"`
}

// JSONLatency is a JSON-serializable latency metrics
type JSONLatency struct {
	Average   string         `json:"average"`
	Min       string         `json:"min"`
	Max       string         `json:"max"`
	P50       string         `json:"p50"`
	P95       string         `json:"p95"`
	P99       string         `json:"p99"`
	Histogram map[string]int `json:"histogram"`
}

// JSONTransaction is one receipt
type JSONTransaction struct {
	Signature   string `json:"signature"`
	Instruction string `json:"instruction,omitempty"`
	Status      string `json:"status"`
	Slot        uint64 `json:"slot,omitempty"`
	Commitment  string `json:"commitment,omitempty"`
	SentAt      string `json:"sent_at"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
	Latency     string `json:"latency,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewJSONReport creates a JSON-serializable report
func NewJSONReport(report *Report) *JSONReport {
	m := report.Metrics
	jr := &JSONReport{
		Name:      report.Name,
		StartTime: report.StartTime.Format(time.RFC3339),
		EndTime:   report.EndTime.Format(time.RFC3339),
		Duration:  report.Duration.String(),
		Summary: JSONSummary{
			TotalSent:      m.TotalSent,
			TotalConfirmed: m.TotalConfirmed,
			TotalFailed:    m.TotalFailed,
			TotalExpired:   m.TotalExpired,
			TotalTimeout:   m.TotalTimeout,
			TotalPending:   m.TotalPending,
			SuccessRate:    m.SuccessRate,
		},
		Latency: JSONLatency{
			Average:   m.AvgLatency.String(),
			Min:       m.MinLatency.String(),
			Max:       m.MaxLatency.String(),
			P50:       m.P50Latency.String(),
			P95:       m.P95Latency.String(),
			P99:       m.P99Latency.String(),
			Histogram: report.LatencyHistogram,
		},
		Transactions: make([]JSONTransaction, 0, len(report.Transactions)),
	}

	for _, tx := range report.Transactions {
		jr.Transactions = append(jr.Transactions, newJSONTransaction(tx))
	}
	return jr
}

func newJSONTransaction(tx *TxInfo) JSONTransaction {
	out := JSONTransaction{
		Signature:   tx.Signature.String(),
		Instruction: tx.Instruction,
		Status:      tx.Status.String(),
		Slot:        tx.Slot,
		Commitment:  string(tx.Commitment),
		SentAt:      tx.SentAt.Format(time.RFC3339Nano),
	}
	if !tx.ConfirmedAt.IsZero() {
		out.ConfirmedAt = tx.ConfirmedAt.Format(time.RFC3339Nano)
		out.Latency = tx.Latency.String()
	}
	if tx.Error != nil {
		out.Error = tx.Error.Error()
	}
	return out
}

// exportCSV writes one row per transaction
func (e *Exporter) exportCSV(report *Report, timestamp string) (string, error) {
	filename := filepath.Join(e.outputDir, fmt.Sprintf("receipts_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Signature", "Instruction", "Status", "Slot", "Commitment", "SentAt", "ConfirmedAt", "Latency", "Error"}
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, tx := range report.Transactions {
		j := newJSONTransaction(tx)
		record := []string{
			j.Signature,
			j.Instruction,
			j.Status,
			strconv.FormatUint(j.Slot, 10),
			j.Commitment,
			j.SentAt,
			j.ConfirmedAt,
			j.Latency,
			j.Error,
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return filename, nil
}

// ExportAll exports the report in all formats
func (e *Exporter) ExportAll(report *Report) ([]string, error) {
	files := make([]string, 0, 2)

	jsonFile, err := e.Export(report, FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to export JSON: %w", err)
	}
	files = append(files, jsonFile)

	csvFile, err := e.Export(report, FormatCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to export CSV: %w", err)
	}
	files = append(files, csvFile)

	return files, nil
}
