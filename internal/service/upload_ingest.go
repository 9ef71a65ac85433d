package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
)

// UploadIngestService converts vehicle locator spreadsheets into normalized
// rows at upload trust rank. Rows reference dealers by distributor code.
type UploadIngestService struct {
	Store      repository.Repository
	Writer     *ObservationWriterService
	Reconciler *ReconcilerService
	Logger     *zap.Logger
}

type UploadSummary struct {
	UploadID     uint64           `json:"upload_id"`
	Filename     string           `json:"filename"`
	Status       string           `json:"status"`
	RowsIngested int              `json:"rows_ingested"`
	RowsUpdated  int              `json:"rows_updated"`
	RowErrors    []map[string]any `json:"row_errors"`
}

// Ingest parses a CSV locator file, records the upload, and pushes the rows
// through the writer and reconciler. Bad rows are reported per row number
// and never stop the rest of the file.
func (s *UploadIngestService) Ingest(ctx context.Context, filename string, content []byte) (UploadSummary, error) {
	if len(content) == 0 {
		return UploadSummary{}, fmt.Errorf("uploaded file is empty")
	}

	upload := &models.Upload{
		UploadedAt: time.Now().UTC(),
		Filename:   filename,
		Status:     models.UploadStatusProcessing,
		Errors:     mustJSON([]any{}),
		RowErrors:  mustJSON([]any{}),
	}
	if err := s.Store.InsertUpload(ctx, upload); err != nil {
		return UploadSummary{}, err
	}

	summary, err := s.process(ctx, upload, content)
	now := time.Now().UTC()
	upload.ProcessedAt = &now
	if err != nil {
		upload.Status = models.UploadStatusFailed
		upload.Errors = mustJSON([]map[string]any{{"message": err.Error()}})
		if saveErr := s.Store.SaveUpload(ctx, upload); saveErr != nil && s.Logger != nil {
			s.Logger.Error("save failed upload record", zap.Error(saveErr))
		}
		return UploadSummary{}, err
	}

	upload.Status = models.UploadStatusCompleted
	upload.RowsIngested = summary.RowsIngested
	upload.RowsUpdated = summary.RowsUpdated
	upload.RowErrors = mustJSON(summary.RowErrors)
	if err := s.Store.SaveUpload(ctx, upload); err != nil {
		return UploadSummary{}, err
	}
	summary.UploadID = upload.ID
	summary.Filename = filename
	summary.Status = models.UploadStatusCompleted
	return summary, nil
}

func (s *UploadIngestService) process(ctx context.Context, upload *models.Upload, content []byte) (UploadSummary, error) {
	records, header, err := readLocatorCSV(content)
	if err != nil {
		return UploadSummary{}, err
	}
	summary := UploadSummary{RowErrors: []map[string]any{}}
	if len(records) == 0 {
		return summary, nil
	}

	codeMap, err := s.dealerCodeMap(ctx)
	if err != nil {
		return UploadSummary{}, err
	}

	now := time.Now().UTC()
	jobID := uuid.NewString()
	rows := make([]NormalizedRow, 0, len(records))
	seen := map[string]int{}

	for idx, record := range records {
		rowNumber := idx + 2 // header occupies row 1
		lookup := lowerKeyed(header, record)

		vin := strings.ToUpper(strings.TrimSpace(lookup["vin"]))
		if vin == "" {
			summary.RowErrors = append(summary.RowErrors, map[string]any{"row": rowNumber, "message": "missing VIN"})
			continue
		}
		code := strings.TrimSpace(lookup["dealer code"])
		if code == "" {
			summary.RowErrors = append(summary.RowErrors, map[string]any{"row": rowNumber, "vin": vin, "message": "missing dealer code"})
			continue
		}
		dealerID, ok := codeMap[strings.ToUpper(code)]
		if !ok {
			summary.RowErrors = append(summary.RowErrors, map[string]any{"row": rowNumber, "vin": vin, "message": fmt.Sprintf("unknown dealer code %s", code)})
			continue
		}

		msrp := parseLocatorDecimal(firstNonEmpty(lookup["total srp"], lookup["msrp"]))
		invoice := parseLocatorDecimal(lookup["invoice"])
		year := parseLocatorInt(firstNonEmpty(lookup["yr."], lookup["year"]))

		row := NormalizedRow{
			DealerID: dealerID,
			VIN:      vin,
			MSRP:     msrp,
			Vehicle: VehicleData{
				Make:          "Toyota",
				Model:         firstNonEmpty(lookup["model name"], lookup["model"]),
				Year:          year,
				Trim:          optional(lookup["trim"]),
				Drivetrain:    optional(lookup["drivetrain"]),
				Transmission:  optional(lookup["transmission"]),
				ExteriorColor: optional(firstNonEmpty(lookup["ext."], lookup["exterior"])),
				InteriorColor: optional(firstNonEmpty(lookup["int."], lookup["interior"])),
				MSRP:          msrp,
				InvoicePrice:  invoice,
				Features:      map[string]any{"vehicle_locator": rawRow(header, record)},
			},
			StockNumber: optional(firstNonEmpty(lookup["stock"], lookup["stock #"], lookup["stock number"])),
			Payload: map[string]any{
				"upload_id":   upload.ID,
				"filename":    upload.Filename,
				"row_index":   rowNumber,
				"dealer_code": code,
			},
			Source:     models.SourceUpload,
			SourceRank: models.RankUpload,
			ObservedAt: now,
			JobID:      jobID,
		}

		// Later rows for the same (dealer, VIN) replace earlier ones.
		key := fmt.Sprintf("%d/%s", dealerID, vin)
		if prev, dup := seen[key]; dup {
			summary.RowErrors = append(summary.RowErrors, map[string]any{
				"row": rowNumber, "vin": vin,
				"message": fmt.Sprintf("duplicate entry for dealer %s; replacing earlier row", code),
			})
			rows[prev] = row
			continue
		}
		seen[key] = len(rows)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return summary, nil
	}

	existing := 0
	for _, row := range rows {
		vehicle, err := s.Store.GetVehicleByVIN(ctx, row.VIN)
		if err != nil {
			return UploadSummary{}, err
		}
		if vehicle != nil {
			existing++
		}
	}

	writeRes, err := s.Writer.WriteBatch(ctx, rows)
	if err != nil {
		return UploadSummary{}, err
	}
	if _, err := s.Reconciler.Reconcile(ctx, writeRes.Accepted); err != nil {
		return UploadSummary{}, err
	}

	for _, rejected := range writeRes.Rejected {
		summary.RowErrors = append(summary.RowErrors, map[string]any{"row": rejected.Row, "vin": rejected.VIN, "message": rejected.Reason})
	}
	summary.RowsIngested = writeRes.Written
	summary.RowsUpdated = existing
	return summary, nil
}

func (s *UploadIngestService) dealerCodeMap(ctx context.Context) (map[string]uint, error) {
	dealers, err := listAllDealers(ctx, s.Store)
	if err != nil {
		return nil, err
	}
	out := map[string]uint{}
	for _, dealer := range dealers {
		if dealer.Code == nil {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(*dealer.Code))
		if code != "" {
			out[code] = dealer.ID
		}
	}
	return out, nil
}

func readLocatorCSV(content []byte) ([][]string, []string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read spreadsheet: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	header := make([]string, len(all[0]))
	for i, col := range all[0] {
		header[i] = strings.TrimSpace(col)
	}
	var records [][]string
	for _, record := range all[1:] {
		empty := true
		for _, cell := range record {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if !empty {
			records = append(records, record)
		}
	}
	return records, header, nil
}

func lowerKeyed(header []string, record []string) map[string]string {
	out := make(map[string]string, len(header))
	for i, col := range header {
		if i >= len(record) {
			break
		}
		out[strings.ToLower(col)] = strings.TrimSpace(record[i])
	}
	return out
}

func rawRow(header []string, record []string) map[string]any {
	out := make(map[string]any, len(header))
	for i, col := range header {
		if i >= len(record) {
			break
		}
		val := strings.TrimSpace(record[i])
		if val == "" {
			out[col] = nil
		} else {
			out[col] = val
		}
	}
	return out
}

func parseLocatorDecimal(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "$", ""), ",", ""))
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.Sign() <= 0 {
		return nil
	}
	return &d
}

func parseLocatorInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			n = int(f)
		} else {
			return nil
		}
	}
	return &n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optional(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}
