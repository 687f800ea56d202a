package services

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/userimport/modules/userimport/domain/field"
)

const templateSheet = "Users"

// templateExample is the sample row shipped in the downloadable template.
var templateExample = map[field.Field]string{
	field.FirstName:           "Jane",
	field.MiddleName:          "A.",
	field.LastName:            "Doe",
	field.Email:               "jane.doe@example.com",
	field.PhoneNumber:         "+15551234567",
	field.Address:             "1 Main Street",
	field.AvatarURL:           "",
	field.Gender:              "FEMALE",
	field.Role:                "TRAINEE",
	field.DateOfBirth:         "1995-04-21",
	field.EnrollmentDate:      "2024-09-01",
	field.TrainingBatch:       "B-2024-09",
	field.PassportNo:          "X1234567",
	field.Nation:              "Kenya",
	field.Specialization:      "",
	field.CertificationNumber: "",
	field.YearsOfExperience:   "",
	field.Bio:                 "",
}

// TemplateService produces the blank import workbook users fill in.
type TemplateService struct{}

func NewTemplateService() *TemplateService {
	return &TemplateService{}
}

// Build returns an xlsx with the canonical header row and one example row.
func (s *TemplateService) Build() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	fields := field.All()
	header := make([]interface{}, len(fields))
	example := make([]interface{}, len(fields))
	for i, fl := range fields {
		header[i] = string(fl)
		example[i] = templateExample[fl]
	}
	if err := f.SetSheetRow(templateSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetSheetRow(templateSheet, "A2", &example); err != nil {
		return nil, fmt.Errorf("write example: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(fields), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(templateSheet, "A1", last, style); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(fields))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(templateSheet, "A", lastCol, 22); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), nil
}

// Write streams the template to w.
func (s *TemplateService) Write(w io.Writer) error {
	data, err := s.Build()
	if err != nil {
		return err
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	return err
}
