package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/farxc/ensu_insecurity/internal/ensu/text"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"gopkg.in/yaml.v3"
)

// AliasTable maps a canonical column to the source header names accepted for it,
// in priority order.
type AliasTable map[string][]string

// Required lists the canonical columns a file must provide, in reporting order.
var Required = []string{types.ColEntity, types.ColMunicipality, types.ColResponseCode}

// DefaultAliases is the alias table covering the survey eras seen so far.
func DefaultAliases() AliasTable {
	return AliasTable{
		types.ColEntity:       {"NOM_ENT", "NOMBRE_ENT", "ENT", "CVE_ENT", "ID_ENTIDAD"},
		types.ColMunicipality: {"NOM_MUN", "NOMBRE_MUN", "NOM_MUNICIPIO", "MUN"},
		types.ColResponseCode: {"BP1_1", "BP11", "BP1_1_A", "P1"},
	}
}

// LoadAliases reads a YAML alias table and merges it over the defaults. Names from the
// file take priority over the built-in ones for the same canonical column.
//
//	entity: [ENTIDAD]
//	response_code: [BP1_1R]
func LoadAliases(path string) (AliasTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file %s: %w", path, err)
	}

	var fromFile AliasTable
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}

	for canonical := range fromFile {
		if !isCanonical(canonical) {
			return nil, fmt.Errorf("alias file %s: unknown canonical column %q", path, canonical)
		}
	}

	return Merge(DefaultAliases(), fromFile), nil
}

func isCanonical(name string) bool {
	for _, r := range Required {
		if r == name {
			return true
		}
	}
	return false
}

// Merge returns a new table where override names come first, followed by base names not
// already listed.
func Merge(base, override AliasTable) AliasTable {
	out := AliasTable{}
	for canonical, names := range base {
		out[canonical] = append([]string(nil), names...)
	}
	for canonical, names := range override {
		seen := map[string]bool{}
		merged := make([]string, 0, len(names)+len(out[canonical]))
		for _, n := range append(append([]string(nil), names...), out[canonical]...) {
			k := HeaderKey(n)
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, n)
		}
		out[canonical] = merged
	}
	return out
}

// HeaderKey is the comparison form of a header: BOM and quotes stripped, accents folded,
// uppercased, spaces and underscores treated alike.
func HeaderKey(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.Trim(name, "\"' \t")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(text.Normalize(name), " ", "_")
}

// Mapping is canonical column -> source column as it appears in the file.
type Mapping map[string]string

type Normalizer struct {
	aliases AliasTable
}

func NewNormalizer(aliases AliasTable) *Normalizer {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	return &Normalizer{aliases: aliases}
}

// Resolve maps each required canonical column to a source column. When any required
// column has no match the error wraps types.ErrSchemaMissingField and names every
// missing column.
func (n *Normalizer) Resolve(columns []string) (Mapping, error) {
	byKey := make(map[string]string, len(columns))
	for _, c := range columns {
		k := HeaderKey(c)
		if _, dup := byKey[k]; !dup {
			byKey[k] = c
		}
	}

	mapping := Mapping{}
	var missing []string
	for _, canonical := range Required {
		found := false
		for _, alias := range n.aliases[canonical] {
			if src, ok := byKey[HeaderKey(alias)]; ok {
				mapping[canonical] = src
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, canonical)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrSchemaMissingField, strings.Join(missing, ", "))
	}
	return mapping, nil
}
