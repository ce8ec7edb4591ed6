package ensu

import (
	"fmt"
	"regexp"

	"github.com/farxc/ensu_insecurity/internal/ensu/files"
	"github.com/farxc/ensu_insecurity/internal/ensu/output"
	"github.com/farxc/ensu_insecurity/internal/ensu/schema"
	"github.com/go-playground/validator/v10"
)

// Options are the plain parameters the pipeline consumes.
type Options struct {
	RootDir      string `validate:"required"`
	OutputDir    string `validate:"required"`
	TargetEntity string `validate:"required"`
	ValidCodes   []int  `validate:"required,min=1,dive,gte=0"`

	Aliases          schema.AliasTable
	FallbackEncoding string `validate:"omitempty,oneof=windows-1252 cp1252 iso-8859-1 latin1 latin-1 iso-8859-15 latin9"`
	PathPattern      string
	ConsolidatedName string `validate:"required"`

	Workers            int `validate:"gte=1,lte=64"`
	SkipExisting       bool
	WriteWorkbook      bool
	ResolveEntityCodes bool
}

func DefaultOptions() Options {
	return Options{
		RootDir:            ".",
		OutputDir:          "output",
		TargetEntity:       "YUCATAN",
		ValidCodes:         []int{1, 2, 9},
		Aliases:            schema.DefaultAliases(),
		FallbackEncoding:   "windows-1252",
		PathPattern:        files.DefaultPattern,
		ConsolidatedName:   output.DefaultConsolidatedName,
		Workers:            1,
		ResolveEntityCodes: true,
	}
}

var validate = validator.New()

func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if o.PathPattern != "" {
		if _, err := regexp.Compile(o.PathPattern); err != nil {
			return fmt.Errorf("invalid options: path pattern: %w", err)
		}
	}
	seen := map[int]bool{}
	for _, c := range o.ValidCodes {
		if seen[c] {
			return fmt.Errorf("invalid options: duplicate valid code %d", c)
		}
		seen[c] = true
	}
	return nil
}
