package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/massfeed/internal/runner"
)

// Header is the CSV column order written by WriteCSV.
var Header = []string{
	"tick", "time", "elapsed", "stage", "feed_type",
	"mass", "pressure", "pump_rate", "target", "commanded", "measured",
	"limit_hit", "nudge", "advanced",
}

func WriteJSON(w io.Writer, result *runner.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteCSV writes one row per tick. Ticks without a measured rate leave the
// measured column empty.
func WriteCSV(w io.Writer, result *runner.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, rec := range result.Trace {
		measured := ""
		if rec.HasMeasured {
			measured = formatFloat(rec.Measured)
		}
		nudge := ""
		if rec.Nudge != 0 {
			nudge = rec.Nudge.String()
		}
		row := []string{
			strconv.Itoa(rec.Tick),
			rec.Time.Format("2006-01-02T15:04:05.000Z07:00"),
			formatFloat(rec.Elapsed),
			strconv.Itoa(rec.Stage),
			rec.FeedType.String(),
			formatFloat(rec.Mass),
			formatFloat(rec.Pressure),
			formatFloat(rec.PumpRate),
			formatFloat(rec.Target),
			formatFloat(rec.Commanded),
			measured,
			strconv.FormatBool(rec.LimitHit),
			nudge,
			strconv.FormatBool(rec.Advanced),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ToFile writes result to path with write, or to stdout when path is "-".
func ToFile(path string, result *runner.Result, write func(io.Writer, *runner.Result) error) error {
	if path == "-" {
		return write(os.Stdout, result)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file, result); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
