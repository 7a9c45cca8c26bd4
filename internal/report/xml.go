package report

import (
	"bufio"
	"encoding/xml"
	"os"
	"time"

	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/orchestrator"
)

// ScanXML is the root element of a run's XML export.
type ScanXML struct {
	XMLName   xml.Name   `xml:"scanresult"`
	Input     string     `xml:"input,attr"`
	Generated string     `xml:"generated,attr"`
	Batches   []BatchXML `xml:"batch"`
}

// BatchXML is one orchestration pass.
type BatchXML struct {
	ID        string    `xml:"id,attr"`
	Mode      string    `xml:"mode,attr"`
	StartTime string    `xml:"start_time,attr"`
	Duration  string    `xml:"duration,attr"`
	Success   int       `xml:"success,attr"`
	Total     int       `xml:"total,attr"`
	Hosts     []HostXML `xml:"host"`
}

// HostXML is the outcome for one address, in input order.
type HostXML struct {
	Address  string `xml:"address,attr"`
	Result   string `xml:"result,attr"`
	Success  bool   `xml:"success,attr"`
	Duration string `xml:"duration,attr"`
	Detail   string `xml:"detail"`
}

// NewScanXML converts finished batches into their XML form.
func NewScanXML(inputPath string, generated time.Time, batches ...orchestrator.Batch) *ScanXML {
	doc := &ScanXML{
		Input:     inputPath,
		Generated: generated.Format(time.RFC3339),
		Batches:   make([]BatchXML, 0, len(batches)),
	}

	for _, b := range batches {
		bx := BatchXML{
			ID:        b.ID,
			Mode:      string(b.Mode),
			StartTime: b.Started.Format(time.RFC3339),
			Duration:  b.Duration.String(),
			Success:   b.SuccessCount(),
			Total:     b.Len(),
			Hosts:     make([]HostXML, 0, b.Len()),
		}
		for _, o := range b.InInputOrder() {
			bx.Hosts = append(bx.Hosts, HostXML{
				Address:  o.Address,
				Result:   o.Result(),
				Success:  o.Success,
				Duration: o.Duration.String(),
				Detail:   o.Detail,
			})
		}
		doc.Batches = append(doc.Batches, bx)
	}
	return doc
}

// WriteXML writes the batches of a run to path as indented XML.
func WriteXML(path, inputPath string, generated time.Time, batches ...orchestrator.Batch) error {
	doc := NewScanXML(inputPath, generated, batches...)

	return writeFile(path, func(w *bufio.Writer) error {
		if _, err := w.WriteString(xml.Header); err != nil {
			return err
		}
		encoder := xml.NewEncoder(w)
		encoder.Indent("", "  ")
		if err := encoder.Encode(doc); err != nil {
			return err
		}
		return w.WriteByte('\n')
	})
}

// LoadXML reads an export written by WriteXML.
func LoadXML(path string) (*ScanXML, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileError(errors.CodeFileNotFound, "file not found", path, err)
		}
		return nil, errors.NewFileError(errors.CodeFileRead, "failed to open export", path, err)
	}
	defer file.Close()

	var doc ScanXML
	if err := xml.NewDecoder(file).Decode(&doc); err != nil {
		return nil, errors.NewFileError(errors.CodeFileRead, "failed to decode export", path, err)
	}
	return &doc, nil
}
