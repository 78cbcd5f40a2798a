package importer

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pbaille/workhours/internal/normalize"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	return v
}

// RecordRow is one work-record spreadsheet row after header mapping
type RecordRow struct {
	Date         string `field:"date" validate:"required"`
	Technician   string `field:"technician_name" validate:"required"`
	Client       string `field:"client_name"`
	TaskType     string `field:"task_type_name" validate:"required"`
	Modality     string `field:"modality_name" validate:"required"`
	Description  string `field:"task_description"`
	TicketNumber string `field:"ticket_number"`
	Hours        string `field:"hours" validate:"required"`
	FreeText     string `field:"free_text"`
}

// ContactRow is one contact spreadsheet row after header mapping
type ContactRow struct {
	Organization string `field:"organization" validate:"required"`
	FirstName    string `field:"first_name" validate:"required"`
	LastName     string `field:"last_name"`
	RoleTitle    string `field:"role_title"`
	WorkEmail    string `field:"work_email" validate:"omitempty,email"`
	WorkPhone    string `field:"work_phone"`
	MobilePhone  string `field:"mobile_phone"`
	Notes        string `field:"notes"`
}

// recordAliases maps normalized spreadsheet headers onto record fields
var recordAliases = aliases(map[string][]string{
	"date":             {"date", "fecha"},
	"technician_name":  {"technician name", "technician", "tecnico", "nombre tecnico"},
	"client_name":      {"client name", "client", "cliente"},
	"task_type_name":   {"task type name", "task type", "tipo de tarea", "tipo tarea", "tarea"},
	"modality_name":    {"modality name", "modality", "modalidad"},
	"task_description": {"task description", "description", "descripcion", "detalle"},
	"ticket_number":    {"ticket number", "ticket", "nro ticket", "numero de ticket", "n° ticket"},
	"hours":            {"hours", "horas", "hs"},
	"free_text":        {"free text", "observaciones", "comentarios", "notas"},
})

// contactAliases maps normalized spreadsheet headers onto contact fields
var contactAliases = aliases(map[string][]string{
	"organization": {"organization", "organizacion", "empresa", "cliente", "marca"},
	"first_name":   {"first name", "nombre"},
	"last_name":    {"last name", "apellido"},
	"role_title":   {"role title", "role", "cargo", "puesto"},
	"work_email":   {"work email", "email", "correo", "email laboral"},
	"work_phone":   {"work phone", "phone", "telefono", "telefono laboral"},
	"mobile_phone": {"mobile phone", "mobile", "celular", "movil"},
	"notes":        {"notes", "notas", "observaciones"},
})

func aliases(m map[string][]string) map[string]string {
	out := make(map[string]string)
	for field, names := range m {
		for _, n := range names {
			out[normalizeHeader(n)] = field
		}
	}
	return out
}

func normalizeHeader(h string) string {
	return normalize.Normalize(strings.ReplaceAll(h, "_", " "))
}

// canonical maps a raw row onto known field names with trimmed values.
// Unknown columns are dropped. When two headers map onto the same field
// the first non-empty one in header order wins.
func canonical(row map[string]string, aliases map[string]string) (map[string]string, bool) {
	headers := make([]string, 0, len(row))
	for h := range row {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	out := make(map[string]string, len(row))
	blank := true
	for _, header := range headers {
		value := strings.TrimSpace(row[header])
		if value != "" {
			blank = false
		}
		field, ok := aliases[normalizeHeader(header)]
		if !ok || value == "" {
			continue
		}
		if _, taken := out[field]; !taken {
			out[field] = value
		}
	}
	return out, blank
}

// decodeRecordRow validates a raw row. blank is true for rows with no
// values at all, which callers skip silently.
func decodeRecordRow(raw map[string]string) (row RecordRow, blank bool, err error) {
	m, blank := canonical(raw, recordAliases)
	if blank {
		return row, true, nil
	}

	row = RecordRow{
		Date:         m["date"],
		Technician:   m["technician_name"],
		Client:       m["client_name"],
		TaskType:     m["task_type_name"],
		Modality:     m["modality_name"],
		Description:  m["task_description"],
		TicketNumber: m["ticket_number"],
		Hours:        m["hours"],
		FreeText:     m["free_text"],
	}
	return row, false, checkStruct(row)
}

func decodeContactRow(raw map[string]string) (row ContactRow, blank bool, err error) {
	m, blank := canonical(raw, contactAliases)
	if blank {
		return row, true, nil
	}

	row = ContactRow{
		Organization: m["organization"],
		FirstName:    m["first_name"],
		LastName:     m["last_name"],
		RoleTitle:    m["role_title"],
		WorkEmail:    strings.ToLower(m["work_email"]),
		WorkPhone:    m["work_phone"],
		MobilePhone:  m["mobile_phone"],
		Notes:        m["notes"],
	}
	return row, false, checkStruct(row)
}

// checkStruct reports the first failing field as a FieldError
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return &FieldError{Field: fe.Field(), Err: ErrMissingField}
		}
		return &FieldError{Field: fe.Field(), Err: fmt.Errorf("%w: %q fails %s", ErrInvalidValue, fe.Value(), fe.Tag())}
	}
	return err
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02/01/06",
	"2/1/06",
	"02.01.2006",
}

// excelEpoch is day zero of spreadsheet serial dates
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseDate accepts ISO dates, day-first dates and spreadsheet serials
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return dateOnly(t), nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		return excelEpoch.AddDate(0, 0, int(serial)), nil
	}
	return time.Time{}, &FieldError{Field: "date", Err: fmt.Errorf("%w: %q is not a date", ErrInvalidValue, s)}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseHours accepts "1.5" and "1,5"; the result must be positive
func parseHours(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	h, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, &FieldError{Field: "hours", Err: fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)}
	}
	if h <= 0 {
		return 0, &FieldError{Field: "hours", Err: fmt.Errorf("%w: hours must be positive, got %v", ErrInvalidValue, h)}
	}
	return h, nil
}
