// Command pdfstamp stamps form values onto a template PDF offline, using the
// same stamping engine as the server's download endpoint.
//
// Usage:
//
//	pdfstamp --template lease.json --values values.json --pdf lease.pdf --out signed.pdf
//
// Every flag can also come from the environment with a PDFSTAMP_ prefix
// (PDFSTAMP_TEMPLATE, PDFSTAMP_VALUES, ...). Flags win over the environment.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/fill"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/stamper"
)

// options are the resolved command line settings.
type options struct {
	Template string // JSON: a template object or a bare field array
	Values   string // JSON object of label -> value
	PDF      string // base PDF; defaults to the template's file_path
	Out      string
	Strict   bool // refuse to stamp when required fields are empty
}

func main() {
	log.SetFlags(0)

	opts, err := loadOptions(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	if err := run(afero.NewOsFs(), opts); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("✅ Wrote %s", opts.Out)
}

// loadOptions parses args, falling back to PDFSTAMP_* environment variables.
//
// Go Pattern: a private FlagSet and viper instance instead of the package
// globals, so tests can call this repeatedly.
func loadOptions(args []string) (*options, error) {
	fs := pflag.NewFlagSet("pdfstamp", pflag.ContinueOnError)
	fs.String("template", "", "Template JSON file (template object or field array)")
	fs.String("values", "", "Form values JSON file")
	fs.String("pdf", "", "Base PDF (defaults to the template's file_path)")
	fs.String("out", "stamped.pdf", "Output PDF")
	fs.Bool("strict", true, "Fail when a required field has no value")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of pdfstamp:\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDFSTAMP_TEMPLATE, PDFSTAMP_VALUES, PDFSTAMP_PDF, PDFSTAMP_OUT, PDFSTAMP_STRICT\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("PDFSTAMP")
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	opts := &options{
		Template: v.GetString("template"),
		Values:   v.GetString("values"),
		PDF:      v.GetString("pdf"),
		Out:      v.GetString("out"),
		Strict:   v.GetBool("strict"),
	}
	if opts.Template == "" || opts.Values == "" {
		return nil, errors.New("--template and --values are required")
	}
	if opts.Out == "" {
		return nil, errors.New("--out must not be empty")
	}
	return opts, nil
}

// run loads the inputs from fsys, stamps, and writes the result.
func run(fsys afero.Fs, opts *options) error {
	tpl, err := readTemplate(fsys, opts.Template)
	if err != nil {
		return err
	}

	var values models.FormValues
	if err := readJSON(fsys, opts.Values, &values); err != nil {
		return err
	}

	if opts.Strict {
		if err := fill.Validate(tpl.Fields, values); err != nil {
			return err
		}
	}

	pdfPath := opts.PDF
	if pdfPath == "" {
		pdfPath = tpl.FilePath
	}
	if pdfPath == "" {
		return errors.New("no base PDF: pass --pdf or set file_path in the template")
	}
	base, err := afero.ReadFile(fsys, pdfPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", pdfPath, err)
	}

	out, err := stamper.New().Stamp(base, tpl.Fields, values)
	if err != nil {
		return fmt.Errorf("failed to stamp: %w", err)
	}
	if err := afero.WriteFile(fsys, opts.Out, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Out, err)
	}
	return nil
}

// readTemplate accepts either a full template (as returned by the API) or
// just its field array.
func readTemplate(fsys afero.Fs, path string) (*models.Template, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fields models.Fields
	if err := json.Unmarshal(data, &fields); err == nil {
		return &models.Template{Fields: fields}, nil
	}

	var tpl models.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &tpl, nil
}

func readJSON(fsys afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
