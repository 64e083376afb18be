package routing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/flowpbx/remotecc/internal/database/models"
)

// ReadRulesCSV parses routing rows from CSV with the columns
// state,area_codes,extension. A first row naming those columns is treated as
// a header. Area codes that hold commas must be quoted.
func ReadRulesCSV(r io.Reader) ([]models.RoutingRule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var rules []models.RoutingRule
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading routing csv: %w", err)
		}
		if line == 1 && isRulesHeader(rec) {
			continue
		}
		rules = append(rules, models.RoutingRule{
			State:     strings.TrimSpace(rec[0]),
			AreaCodes: strings.TrimSpace(rec[1]),
			Extension: strings.TrimSpace(rec[2]),
		})
	}
	return rules, nil
}

func isRulesHeader(rec []string) bool {
	return strings.EqualFold(strings.TrimSpace(rec[0]), "state") &&
		strings.EqualFold(strings.ReplaceAll(strings.TrimSpace(rec[1]), "_", ""), "areacodes")
}
