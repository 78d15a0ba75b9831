package fs

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/orgkb/orgkb"
)

// catalogFile is the YAML shape of the procedure catalog.
type catalogFile struct {
	Procedures []catalogProcedure `yaml:"procedures"`
}

type catalogProcedure struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Aliases     []string       `yaml:"aliases"`
	Acronyms    []string       `yaml:"acronyms"`
	Description string         `yaml:"description"`
	Fields      []catalogField `yaml:"fields"`
}

type catalogField struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// LoadCatalog reads the procedure catalog from a YAML file. The
// catalog defines which procedures the tagger looks for and which
// structured fields extraction must fill for each.
func LoadCatalog(path string) ([]*orgkb.Procedure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, orgkb.Errorf(orgkb.ENOTFOUND, "catalog file %s not found", path)
		}
		return nil, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, orgkb.Errorf(orgkb.EINVALID, "invalid catalog file %s: %v", path, err)
	}

	procs := make([]*orgkb.Procedure, 0, len(file.Procedures))
	for _, cp := range file.Procedures {
		p := &orgkb.Procedure{
			ID:          cp.ID,
			Name:        cp.Name,
			Aliases:     cp.Aliases,
			Acronyms:    cp.Acronyms,
			Description: cp.Description,
		}
		for _, f := range cp.Fields {
			typ := orgkb.FieldType(f.Type)
			if typ == "" {
				typ = orgkb.FieldString
			}
			p.Schema.Fields = append(p.Schema.Fields, orgkb.Field{
				Name:        f.Name,
				Type:        typ,
				Required:    f.Required,
				Description: f.Description,
			})
		}
		if len(p.Schema.Fields) == 0 {
			p.Schema = orgkb.DefaultSchema()
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, nil
}
