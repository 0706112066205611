package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	// latLngPattern validates the lat:lng coordinate form
	latLngPattern = regexp.MustCompile(`^[+-]?([0-9]+([.][0-9]*)?|[.][0-9]+):[+-]?([0-9]+([.][0-9]*)?|[.][0-9]+)$`)

	// tzPattern validates the tz_dst:tz_dst_auto:tz_utc_offset:tzautodetect form
	tzPattern = regexp.MustCompile(`^(True|False):(True|False):[+-]?([0-9]+):(True|False)$`)
)

// accessValues are the allowed Access markers: Continuous devices are
// expected online at all times, Periodic ones (battery powered) surface
// only occasionally.
var accessValues = map[string]bool{"Continuous": true, "Periodic": true}

// ImportError reports a rejected import record.
type ImportError struct {
	Record  int
	Message string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Record, e.Message)
}

// Validate checks one instruction's field values. n is the 1-based record
// number for error reporting.
func (in *Instruction) Validate(n int) error {
	// An instruction carrying only a ProbeIP is a probe target, not a
	// provisioning job, and needs no network parameters
	if in.ProbeIP == "" {
		if in.SSID == "" {
			return &ImportError{Record: n, Message: "required key SSID missing"}
		}
		if in.Password == "" {
			return &ImportError{Record: n, Message: "required key Password missing"}
		}
	}
	if in.StaticIP != "" {
		if in.NetMask == "" {
			return &ImportError{Record: n, Message: "contains StaticIP but not NetMask; supply both"}
		}
		in.IP = in.StaticIP
	}
	if in.LatLng != "" && !latLngPattern.MatchString(in.LatLng) {
		return &ImportError{Record: n, Message: "improper LatLng; must be of the form lat:lng"}
	}
	if in.TZ != "" && !tzPattern.MatchString(in.TZ) {
		return &ImportError{Record: n, Message: "improper TZ; must be of the form tz_dst:tz_dst_auto:tz_utc_offset:tzautodetect"}
	}
	if in.Access != "" && !accessValues[in.Access] {
		return &ImportError{Record: n, Message: "improper Access value; must be one of Continuous or Periodic"}
	}
	return nil
}

// ImportFile appends records from a CSV or JSON import file to the queue
// and saves it. The format is chosen by file extension; anything not
// .json is treated as CSV.
func (q *Queue) ImportFile(path string) (int, error) {
	var (
		instructions []*Instruction
		err          error
	)
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		instructions, err = readImportJSON(path)
	} else {
		instructions, err = readImportCSV(path)
	}
	if err != nil {
		return 0, err
	}

	for i, in := range instructions {
		if err := in.Validate(i + 1); err != nil {
			return 0, err
		}
	}

	q.Append(instructions)
	if err := q.Save(); err != nil {
		return 0, err
	}
	return len(instructions), nil
}

func readImportJSON(path string) ([]*Instruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	var instructions []*Instruction
	if err := json.Unmarshal(data, &instructions); err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}
	return instructions, nil
}

func readImportCSV(path string) ([]*Instruction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read import header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var instructions []*Instruction
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read import row: %w", err)
		}

		in := &Instruction{}
		for i, value := range row {
			if i >= len(header) {
				break
			}
			in.setField(header[i], strings.TrimSpace(value))
		}
		instructions = append(instructions, in)
	}
	return instructions, nil
}

// setField maps a CSV column onto an instruction field. Unknown columns
// are ignored so import files can carry operator notes.
func (in *Instruction) setField(column, value string) {
	switch column {
	case "SSID":
		in.SSID = value
	case "Password":
		in.Password = value
	case "StaticIP":
		in.StaticIP = value
	case "NetMask":
		in.NetMask = value
	case "Gateway":
		in.Gateway = value
	case "DeviceName":
		in.DeviceName = value
	case "LatLng":
		in.LatLng = value
	case "TZ":
		in.TZ = value
	case "Group":
		in.Group = value
	case "Label":
		in.Label = value
	case "Tags":
		in.Tags = value
	case "ProbeIP":
		in.ProbeIP = value
	case "Access":
		in.Access = value
	}
}
