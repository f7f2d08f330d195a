package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mmaneta/eki-lpr-update/internal/domain"
)

// Column names of OpenET field exports and the field key table.
const (
	ColTime        = "time"
	ColFieldID     = "EKIfld"
	ColAcreFeet    = "acre-feet"
	ColAcres       = "acres"
	ColUnitID      = "concat_appl_ID"
	ColProgramYear = "LRP_Yr"
	ColRepurposed  = "Repurp"
)

// ReadFieldRows parses a precipitation or ET table. Extra columns are ignored.
func ReadFieldRows(r io.Reader, name string) ([]domain.FieldRow, error) {
	t, err := readTable(r, name, ColTime, ColFieldID, ColAcreFeet, ColAcres)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.FieldRow, 0, len(t.records))
	for i := range t.records {
		ts, err := t.time(i, ColTime)
		if err != nil {
			return nil, err
		}
		id := t.str(i, ColFieldID)
		if id == "" {
			return nil, t.invalid(i, ColFieldID, "empty field id")
		}
		vol, err := t.float(i, ColAcreFeet)
		if err != nil {
			return nil, err
		}
		area, err := t.float(i, ColAcres)
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.FieldRow{Time: ts, FieldID: id, VolumeAF: vol, AreaAcres: area})
	}
	return rows, nil
}

// WriteFieldRows writes rows with the columns ReadFieldRows expects.
func WriteFieldRows(w io.Writer, rows []domain.FieldRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColTime, ColFieldID, ColAcreFeet, ColAcres}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{fmtTime(r.Time), r.FieldID, fmtFloat(r.VolumeAF), fmtFloat(r.AreaAcres)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadFieldKeys parses the field key table. Repurp is "Y" for repurposed
// fields; any other value is treated as not repurposed.
func ReadFieldKeys(r io.Reader, name string) ([]domain.FieldKey, error) {
	t, err := readTable(r, name, ColFieldID, ColUnitID, ColProgramYear, ColRepurposed)
	if err != nil {
		return nil, err
	}

	keys := make([]domain.FieldKey, 0, len(t.records))
	for i := range t.records {
		k := domain.FieldKey{
			FieldID:     t.str(i, ColFieldID),
			UnitID:      t.str(i, ColUnitID),
			ProgramYear: t.str(i, ColProgramYear),
			Repurposed:  strings.EqualFold(t.str(i, ColRepurposed), "Y"),
		}
		if k.FieldID == "" || k.UnitID == "" {
			return nil, &domain.InputValidationError{
				Field:  fmt.Sprintf("%s line %d", name, t.line(i)),
				Reason: "field id and unit id are required",
			}
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// WriteFieldKeys writes keys with the columns ReadFieldKeys expects.
func WriteFieldKeys(w io.Writer, keys []domain.FieldKey) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColFieldID, ColUnitID, ColProgramYear, ColRepurposed}); err != nil {
		return err
	}
	for _, k := range keys {
		repurp := "N"
		if k.Repurposed {
			repurp = "Y"
		}
		if err := cw.Write([]string{k.FieldID, k.UnitID, k.ProgramYear, repurp}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
