package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/targodan/go-errors"
)

//go:embed schema/run-report.schema.json
var runReportSchema []byte

// SchemaURL identifies the schema of the current FormatVersion.
var SchemaURL = fmt.Sprintf("https://github.com/fkie-cad/ahkdump/reportFormat/%s/run-report.schema.json", FormatVersion)

// Validator checks reports against the embedded report schema. No schema
// is ever fetched from the network.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		return nil, errors.Newf("schema URL \"%s\" cannot be resolved offline", url)
	}
	if err := compiler.AddResource(SchemaURL, bytes.NewReader(runReportSchema)); err != nil {
		return nil, errors.Errorf("could not load report schema, reason: %w", err)
	}
	schema, err := compiler.Compile(SchemaURL)
	if err != nil {
		return nil, errors.Errorf("could not compile report schema, reason: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate validates a JSON encoded report.
func (v *Validator) Validate(data []byte) error {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return errors.Errorf("report is not valid JSON, reason: %w", err)
	}
	return v.schema.Validate(doc)
}

// ValidateReport encodes rprt and validates the result.
func (v *Validator) ValidateReport(rprt *Report) error {
	data, err := json.Marshal(rprt)
	if err != nil {
		return errors.Errorf("could not encode report, reason: %w", err)
	}
	return v.Validate(data)
}
