package catalog

import (
	"fmt"
	"strings"

	"preciobot/internal"
)

var (
	// StandardHeaders are required on the general price sheet.
	StandardHeaders = []string{
		internal.FieldDevice, internal.FieldCode, internal.FieldSale,
		internal.FieldInitialFinancier, internal.FieldInitialReal, internal.FieldDiscount,
		internal.FieldBasePrice, internal.FieldAddiSumas, internal.FieldCash,
	}
	// RecompraHeaders are required on the trade-in sheet, which has no cash column.
	RecompraHeaders = StandardHeaders[:len(StandardHeaders)-1 : len(StandardHeaders)-1]
)

// BuildRecords turns a raw grid into records. The first row is the header
// row; it must contain every required name or the whole sheet is rejected.
// Rows without a device name are skipped and empty cells read as "0".
func BuildRecords(sheet string, rows [][]string, required []string) ([]internal.CatalogRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s is empty", internal.ErrHeaderMismatch, sheet)
	}

	headers := make([]string, len(rows[0]))
	present := make(map[string]struct{}, len(headers))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		present[headers[i]] = struct{}{}
	}

	var missing []string
	for _, name := range required {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: sheet %s lacks %s", internal.ErrHeaderMismatch, sheet, strings.Join(missing, ", "))
	}

	deviceCol := -1
	for i, h := range headers {
		if h == internal.FieldDevice {
			deviceCol = i
			break
		}
	}

	out := make([]internal.CatalogRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		device := ""
		if deviceCol >= 0 && deviceCol < len(row) {
			device = strings.TrimSpace(row[deviceCol])
		}
		if device == "" {
			continue
		}

		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if value == "" {
				value = "0"
			}
			fields[h] = value
		}

		out = append(out, internal.CatalogRecord{
			Sheet:   sheet,
			RowNo:   n + 2,
			Device:  device,
			Headers: headers,
			Fields:  fields,
		})
	}
	return out, nil
}
