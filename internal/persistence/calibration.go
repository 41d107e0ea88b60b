// Package persistence is the Persistence component (C11): reading and
// writing the turnout calibration file, tolerating a missing or corrupt
// file with warnings rather than failing startup (§6, §7).
package persistence

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/turnout"
)

// Record mirrors one calibration line's fields; turnout.Record is built
// from it after validation, and it is built back from a turnout.Record
// on save (§8 invariant 5: round-trip byte-identical modulo Pid).
type Record struct {
	Turnout             int
	Addr                uint16
	Port                int
	Pos                 int
	Rate                int
	Open, Middle, Close int
	MinPos, MaxPos      int
	ID                  string
}

// Load reads a calibration file, skipping comment (`#`) and blank lines
// and tolerating corrupt lines with a warning rather than failing the
// whole read (§7 "tolerate missing/corrupt file with warnings, not
// fatal").
func Load(path string, log *logging.Scoped) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("calibration file %s unreadable (%v); starting with no turnout records", path, err)
		return nil, nil
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			log.Warn("calibration file %s line %d: %v (skipped)", path, lineNo, err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		log.Warn("calibration file %s: read error after %d lines (%v); using records parsed so far", path, lineNo, err)
	}
	return records, nil
}

// parseLine parses one `Key:value` space-separated record line (§6).
func parseLine(line string) (Record, error) {
	var rec Record
	haveTurnout := false
	// Id is free text and may contain spaces, so it takes the rest of the
	// line rather than a single space-separated field.
	if i := strings.Index(line, "Id:"); i >= 0 && (i == 0 || line[i-1] == ' ') {
		rec.ID = line[i+len("Id:"):]
		line = line[:i]
	}
	for _, field := range strings.Fields(line) {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			return Record{}, fmt.Errorf("malformed field %q", field)
		}
		var err error
		switch key {
		case "Turnout":
			rec.Turnout, err = strconv.Atoi(value)
			haveTurnout = true
		case "Pid":
			// ignored on read; always rewritten as 0 on save.
		case "Addr":
			var v int64
			v, err = strconv.ParseInt(value, 0, 32)
			rec.Addr = uint16(v)
		case "Port":
			rec.Port, err = strconv.Atoi(value)
		case "Pos":
			rec.Pos, err = strconv.Atoi(value)
		case "Rate":
			rec.Rate, err = strconv.Atoi(value)
		case "Open":
			rec.Open, err = strconv.Atoi(value)
		case "Middle":
			rec.Middle, err = strconv.Atoi(value)
		case "Close":
			rec.Close, err = strconv.Atoi(value)
		case "MinPos":
			rec.MinPos, err = strconv.Atoi(value)
		case "MaxPos":
			rec.MaxPos, err = strconv.Atoi(value)
		case "Id":
			rec.ID = value
		default:
			// unknown field: ignore rather than fail the whole line.
		}
		if err != nil {
			return Record{}, fmt.Errorf("field %q: %w", field, err)
		}
	}
	if !haveTurnout {
		return Record{}, fmt.Errorf("missing Turnout field")
	}
	return rec, nil
}

// FromTurnoutRecord builds a persistence Record from a live turnout
// record, for saving.
func FromTurnoutRecord(r *turnout.Record) Record {
	return Record{
		Turnout: r.Index,
		Addr:    r.Addr,
		Port:    r.Port,
		Pos:     r.CurrentValue(),
		Rate:    r.Rate,
		Open:    r.Open,
		Middle:  r.Middle,
		Close:   r.Close,
		MinPos:  r.Min,
		MaxPos:  r.Max,
		ID:      r.Label,
	}
}

func (rec Record) line() string {
	return fmt.Sprintf("Turnout:%02d Pid:0 Addr:0x%02X Port:%d Pos:%d Rate:%d Open:%d Middle:%d Close:%d MinPos:%d MaxPos:%d Id:%s",
		rec.Turnout, rec.Addr, rec.Port, rec.Pos, rec.Rate, rec.Open, rec.Middle, rec.Close, rec.MinPos, rec.MaxPos, rec.ID)
}

// Save rewrites the calibration file atomically (write to a temp file in
// the same directory, then rename) from the given records, in turnout
// index order. If backup is true and the destination already exists, it
// is preserved as a `.bak` copy first (§6 "previous file backed up ...
// on an explicit regeneration request").
func Save(path string, records []Record, backup bool, log *logging.Scoped) error {
	if backup {
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, path+".bak"); err != nil {
				log.Warn("calibration backup failed: %v", err)
			}
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".calibration-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp calibration file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Turnout < sorted[j].Turnout })

	w := bufio.NewWriter(tmp)
	for _, rec := range sorted {
		if _, err := fmt.Fprintln(w, rec.line()); err != nil {
			tmp.Close()
			return fmt.Errorf("writing calibration record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing calibration file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp calibration file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming calibration file into place: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
