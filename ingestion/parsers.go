package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText converts a raw document payload into plain text according to
// its format.
func ExtractText(data []byte, format DocumentFormat) (string, error) {
	switch format {
	case FormatText, FormatMarkdown:
		return normalizePlainText(string(data)), nil
	case FormatPDF:
		return extractPDF(data)
	case FormatCSV:
		return extractCSV(data)
	default:
		return "", fmt.Errorf("unsupported document format %q", format)
	}
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizePlainText(buf.String()), nil
}

// extractCSV renders each row as "header: value" lines so the chunks carry
// the column names the embeddings need.
func extractCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return "", nil
	}

	headers := records[0]
	rows := records[1:]

	paragraphs := make([]string, 0, len(rows))
	for idx, row := range rows {
		paragraphs = append(paragraphs, formatCSVRow(headers, row, idx))
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func formatCSVRow(headers, row []string, idx int) string {
	builder := &strings.Builder{}
	builder.WriteString(fmt.Sprintf("Row %d", idx+1))

	limit := len(headers)
	if len(row) < limit {
		limit = len(row)
	}

	for i := 0; i < limit; i++ {
		header := strings.TrimSpace(headers[i])
		if header == "" {
			header = fmt.Sprintf("Column %d", i+1)
		}
		builder.WriteString("\n")
		builder.WriteString(header)
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(row[i]))
	}

	for i := len(headers); i < len(row); i++ {
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("Extra %d: %s", i+1, strings.TrimSpace(row[i])))
	}

	return builder.String()
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
