// Package export writes attempt audit records for spreadsheets and scripts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/agriexport/dispatchboard/core/dispatch/logging"
)

// Header is the CSV column order.
var Header = []string{
	"resolved_at", "attempt_id", "state", "mode", "vehicle_id", "driver",
	"unit_ids", "total_weight_kg", "capacity_kg", "latency_ms", "reason", "note",
}

// WriteJSON writes the records to w as one JSON array.
func WriteJSON(w io.Writer, records []logging.LogRecord) error {
	if records == nil {
		records = []logging.LogRecord{}
	}
	return json.NewEncoder(w).Encode(records)
}

// WriteCSV writes the records to w with a header row. Unit ids are joined
// with ";".
func WriteCSV(w io.Writer, records []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.AttemptID,
			r.State,
			r.Mode.String(),
			r.VehicleID,
			r.Driver,
			strings.Join(r.UnitIDs, ";"),
			strconv.FormatFloat(r.TotalWeightKg, 'f', -1, 64),
			strconv.FormatFloat(r.CapacityKg, 'f', -1, 64),
			strconv.FormatInt(r.LatencyMS, 10),
			r.Reason,
			r.Note,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
